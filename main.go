package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tusiim3/RAG-Document-System/api"
	"github.com/tusiim3/RAG-Document-System/config"
	"github.com/tusiim3/RAG-Document-System/index"
	"github.com/tusiim3/RAG-Document-System/pipeline"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "ask":
		askCmd(cfg, logger, os.Args[2:])
	case "chat":
		chatCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	case "info":
		infoCmd(cfg, logger, os.Args[2:])
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	paths := flags.Args()
	if len(paths) == 0 {
		logger.Fatal("ingest requires at least one document path")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p := mustPipeline(ctx, cfg, logger)
	defer p.Close()

	for _, path := range paths {
		stats, err := p.IngestFile(ctx, path)
		if err != nil {
			logger.Fatalf("ingest %s: %v", path, err)
		}
		fmt.Printf("%s: %d chunks, %d chars (min %d / avg %d / max %d)\n",
			path, stats.Chunks, stats.TotalChars, stats.MinChunk, stats.AvgChunk, stats.MaxChunk)
	}
}

func askCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	question := flags.String("question", "", "question to ask about the ingested documents")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ask flags: %v", err)
	}

	if strings.TrimSpace(*question) == "" {
		fmt.Print("Enter your question: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			*question = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Fatalf("read question: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p := mustPipeline(ctx, cfg, logger)
	defer p.Close()

	answer, err := p.Ask(ctx, *question)
	if err != nil {
		logger.Fatalf("ask failed: %v", err)
	}

	printAnswer(answer)
}

func chatCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("chat", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse chat flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p := mustPipeline(ctx, cfg, logger)
	defer p.Close()

	fmt.Println("Ask questions about your documents. Type \"exit\" to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}

		answer, err := p.AskStream(ctx, question, func(delta string) error {
			fmt.Print(delta)
			return nil
		})
		if err != nil {
			logger.Printf("ask failed: %v", err)
			continue
		}
		fmt.Println()
		printSources(answer.Sources)
	}
	if err := scanner.Err(); err != nil {
		logger.Fatalf("read input: %v", err)
	}
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		fmt.Print("This will permanently delete all indexed documents. Continue? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatalf("read confirmation: %v", err)
			}
			logger.Println("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p := mustPipeline(ctx, cfg, logger)
	defer p.Close()

	if err := p.Clear(ctx); err != nil {
		logger.Fatalf("clear failed: %v", err)
	}
	logger.Println("knowledge base cleared")
}

func infoCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("info", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse info flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p := mustPipeline(ctx, cfg, logger)
	defer p.Close()

	info, err := p.SystemInfo(ctx)
	if err != nil {
		logger.Fatalf("system info: %v", err)
	}

	fmt.Println("Configuration:")
	fmt.Printf("  Chunk size:     %d\n", info.ChunkSize)
	fmt.Printf("  Chunk overlap:  %d\n", info.ChunkOverlap)
	fmt.Printf("  Retrieval k:    %d\n", info.RetrievalK)
	fmt.Printf("  Temperature:    %.2f\n", info.Temperature)
	fmt.Printf("  Embeddings:     %s/%s (%d dims)\n", info.EmbeddingProvider, info.EmbeddingModel, info.EmbeddingDimension)
	fmt.Printf("  LLM:            %s/%s\n", info.LLMProvider, info.LLMModel)
	fmt.Println("Index:")
	fmt.Printf("  Location:       %s\n", info.Index.Location)
	fmt.Printf("  Metric:         %s\n", info.Index.Metric)
	fmt.Printf("  Chunks stored:  %d\n", info.Index.Count)
	fmt.Printf("  Ready:          %t\n", info.Ready)
	fmt.Println("Components:")
	for name, ok := range info.Components {
		status := "ok"
		if !ok {
			status = "missing"
		}
		fmt.Printf("  %-10s %s\n", name, status)
	}
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.ListenAddr, "address to listen on")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p := mustPipeline(ctx, cfg, logger)
	defer p.Close()

	server := &http.Server{
		Addr:    *addr,
		Handler: api.New(p, cfg.MaxUploadMB, logger).Handler(),
	}

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	logger.Printf("listening on %s", *addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("serve: %v", err)
	}
}

func mustPipeline(ctx context.Context, cfg config.Config, logger *log.Logger) *pipeline.Pipeline {
	p, err := pipeline.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("pipeline setup: %v", err)
	}
	return p
}

func printAnswer(answer pipeline.Answer) {
	fmt.Println(answer.Text)
	printSources(answer.Sources)
}

func printSources(sources []index.Result) {
	if len(sources) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Sources:")
	for idx, source := range sources {
		snippet := strings.TrimSpace(source.Content)
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		fmt.Printf("%d. %s (distance %.4f)\n   %s\n", idx+1, source.Source, source.Distance, snippet)
	}
}

func printUsage() {
	fmt.Println("Usage: rag <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  ingest   Index one or more documents (txt, md, pdf)")
	fmt.Println("  ask      Ask a single question about the indexed documents")
	fmt.Println("  chat     Interactive question loop")
	fmt.Println("  clear    Remove all indexed documents")
	fmt.Println("  info     Show configuration and index state")
	fmt.Println("  serve    Run the HTTP API")
}
