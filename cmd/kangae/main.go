// Package main is the kangae CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kangae/internal/cli"
	"github.com/hyperjump/kangae/internal/config"
	"github.com/hyperjump/kangae/internal/embedding"
	"github.com/hyperjump/kangae/internal/gateway"
	"github.com/hyperjump/kangae/internal/generate"
	"github.com/hyperjump/kangae/internal/index"
	"github.com/hyperjump/kangae/internal/metrics"
	"github.com/hyperjump/kangae/internal/models"
	"github.com/hyperjump/kangae/internal/server"
	"github.com/hyperjump/kangae/internal/synthesis"
	"github.com/hyperjump/kangae/internal/vector"
	"github.com/hyperjump/kangae/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kangae/config.yaml"
	defaultServerURL  = "http://localhost:8001"
)

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present, and a missing default file means environment and defaults only.
// Returns the config and the path that was actually loaded ("" for none).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				path = fallback
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "embed":
		runEmbed()
	case "synthesize":
		runSynthesize()
	case "search":
		runSearch()
	case "smoke":
		runSmoke()
	case "version", "--version", "-v":
		fmt.Printf("kangae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("vector_backend", cfg.Vector.Backend),
		zap.Strings("text_models", cfg.HF.TextModelCandidates()),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(cfg, server.Deps{
		Embedder:    components.Embedder,
		Chain:       components.Chain,
		Synthesizer: components.Synthesizer,
		Index:       components.Index,
		Metrics:     components.Metrics,
	}, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// Components holds initialized services.
type Components struct {
	Metrics     *metrics.Collector
	Embedder    *embedding.HFEmbedder
	Chain       *generate.Chain
	Synthesizer *synthesis.Synthesizer
	Index       *index.Service

	queryEmbedder *embedding.CachedEmbedder
}

// Close releases the vector store, the query cache and the embedder.
func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.queryEmbedder != nil {
		_ = c.queryEmbedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	collector := metrics.NewCollector("kangae")
	poster := gateway.NewClient(cfg.HF.Timeout(), logger, collector)

	embedder := embedding.NewHFEmbedder(&cfg.HF, poster, logger)
	chain := generate.NewChain(&cfg.HF, poster, collector, logger)

	store, err := vector.NewStore(&cfg.Vector, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	cache, err := embedding.NewCache(&cfg.Cache, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedding cache: %w", err)
	}
	queryEmbedder := embedding.NewCachedEmbedder(embedder, cache, collector, logger)

	return &Components{
		Metrics:       collector,
		Embedder:      embedder,
		Chain:         chain,
		Synthesizer:   synthesis.New(&cfg.Synthesis, chain, collector, logger),
		Index:         index.NewService(store, embedder, cfg.Vector.DefaultCollection, logger, index.WithQueryEmbedder(queryEmbedder)),
		queryEmbedder: queryEmbedder,
	}, nil
}

// clientFlags registers the flags shared by commands that talk to a running server.
type clientFlags struct {
	server *string
	secret *string
	output *string
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		server: fs.String("server", defaultServerURL, "server URL"),
		secret: fs.String("secret", os.Getenv("AI_SHARED_SECRET"), "shared secret (default $AI_SHARED_SECRET)"),
		output: fs.String("output", "text", "output format: text or json"),
	}
}

func (f clientFlags) client() *cli.Client {
	return cli.NewClient(*f.server, *f.secret)
}

func (f clientFlags) format() cli.OutputFormat {
	format, err := cli.ParseFormat(*f.output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse() sees them.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func fail(action string, err error) {
	fmt.Fprintf(os.Stderr, "%s failed: %v\n", action, err)
	os.Exit(1)
}

func runEmbed() {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	flags := addClientFlags(fs)
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: kangae embed [flags] <text> [text...]")
		os.Exit(1)
	}
	format := flags.format()

	var resp models.EmbedResponse
	if err := flags.client().Post(context.Background(), "/embed", models.EmbedRequest{Texts: fs.Args()}, &resp); err != nil {
		fail("Embed", err)
	}
	if err := cli.WriteEmbed(os.Stdout, &resp, format); err != nil {
		fail("Output", err)
	}
}

func runSynthesize() {
	fs := flag.NewFlagSet("synthesize", flag.ExitOnError)
	flags := addClientFlags(fs)
	prompt := fs.String("prompt", "", "guidance for the synthesis")
	file := fs.String("file", "", "JSON items file, or - for stdin")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	format := flags.format()

	var items []models.InputItem
	switch {
	case *file == "-":
		parsed, err := readItems(os.Stdin)
		if err != nil {
			fail("Reading items", err)
		}
		items = parsed
	case *file != "":
		f, err := os.Open(*file)
		if err != nil {
			fail("Reading items", err)
		}
		parsed, err := readItems(f)
		f.Close()
		if err != nil {
			fail("Reading items", err)
		}
		items = parsed
	default:
		items = itemsFromArgs(fs.Args())
	}
	if len(items) == 0 {
		fmt.Println("Usage: kangae synthesize [flags] <text> [text...]  (or -file items.json)")
		os.Exit(1)
	}

	var resp models.SynthesisResponse
	req := models.SynthesizeRequest{Items: items, Prompt: *prompt}
	if err := flags.client().Post(context.Background(), "/synthesize", req, &resp); err != nil {
		fail("Synthesize", err)
	}
	if err := cli.WriteSynthesis(os.Stdout, &resp, format); err != nil {
		fail("Output", err)
	}
}

// readItems accepts either a bare JSON array of items or a {"items": [...]} object.
func readItems(r io.Reader) ([]models.InputItem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var items []models.InputItem
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, fmt.Errorf("invalid items: %w", err)
		}
		return items, nil
	}
	var req models.SynthesizeRequest
	if err := json.Unmarshal([]byte(trimmed), &req); err != nil {
		return nil, fmt.Errorf("invalid items: %w", err)
	}
	return req.Items, nil
}

// itemsFromArgs turns each argument into a note item.
func itemsFromArgs(args []string) []models.InputItem {
	var items []models.InputItem
	for i, a := range args {
		if strings.TrimSpace(a) == "" {
			continue
		}
		items = append(items, models.InputItem{Type: "note", ID: fmt.Sprintf("arg-%d", i+1), Text: a})
	}
	return items
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	flags := addClientFlags(fs)
	limit := fs.Int("limit", 12, "number of results")
	collections := fs.String("collections", "", "comma-separated collections (default: server's default collection)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := cli.JoinArgs(fs.Args())
	if query == "" {
		fmt.Println("Usage: kangae search [flags] <query>")
		os.Exit(1)
	}
	format := flags.format()

	req := models.SearchQuery{Query: query, Limit: *limit, Collections: splitList(*collections)}
	var resp models.SearchResponse
	if err := flags.client().Post(context.Background(), "/search", req, &resp); err != nil {
		fail("Search", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, &resp, format); err != nil {
		fail("Output", err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runSmoke() {
	fs := flag.NewFlagSet("smoke", flag.ExitOnError)
	flags := addClientFlags(fs)
	_ = fs.Parse(os.Args[2:])

	var resp map[string]interface{}
	if err := flags.client().Post(context.Background(), "/debug/hf-smoke", nil, &resp); err != nil {
		fail("Smoke test", err)
	}
	if err := cli.WriteJSON(os.Stdout, resp); err != nil {
		fail("Output", err)
	}
}

func printUsage() {
	fmt.Println(`kangae - LLM gateway for embeddings and structured synthesis

Usage:
  kangae server [flags]                Start the HTTP server
  kangae embed [flags] <text>...       Embed texts
  kangae synthesize [flags] <text>...  Synthesize themes, connections and questions
  kangae search [flags] <query>        Search stored items
  kangae smoke [flags]                 Check both upstream models
  kangae version                       Show version
  kangae help                          Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kangae/config.yaml)
  --debug            Enable debug logging

Client Flags (embed, synthesize, search, smoke):
  --server string    Server URL (default: http://localhost:8001)
  --secret string    Shared secret (default: $AI_SHARED_SECRET)
  --output string    Output format: text or json (default: text)

Synthesize Flags:
  --prompt string    Guidance for the synthesis
  --file string      JSON items file ([{type,id,text}] or {"items": [...]}), - for stdin

Search Flags:
  --limit int            Number of results (default: 12)
  --collections string   Comma-separated collections

Examples:
  kangae server
  kangae embed "walked by the river" "water remembers"
  kangae synthesize --prompt "focus on water" -file notes.json
  cat notes.json | kangae synthesize -file - --output json
  kangae search --limit 5 river
  kangae smoke`)
}
