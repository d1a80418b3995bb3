package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"

	eventbus "github.com/hanpama/graphexec/internal/eventbus"
	executor "github.com/hanpama/graphexec/internal/executor"
	otel "github.com/hanpama/graphexec/internal/otel"
	schema "github.com/hanpama/graphexec/internal/schema"
	server "github.com/hanpama/graphexec/internal/server"
)

const rootUsage = `graphexec: GraphQL execution engine demo

USAGE:
  graphexec <command> [flags]

COMMANDS:
  serve            Serve the demo library schema over HTTP
  exec             Execute one query document against the demo schema
  print-schema     Print the demo schema as SDL
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -server.addr <addr>                HTTP listen address (default: :8080)
  -server.pretty                     Pretty-print JSON responses
  -server.timeout <duration>         Per-request timeout, e.g. 10s (default: 10s)
  -server.max-body <bytes>           Maximum request body size (default: 1048576)
  -server.cors-origin <origin>       Allowed CORS origin. Repeatable
  -server.metadata-header <name>     Forward HTTP header to gRPC metadata. Repeatable
  -server.graphiql <bool>            Serve GraphiQL to browsers (default: true)
  -graphql.introspection <bool>      Enable GraphQL introspection (default: true)
  -graphql.mode <mode>               production or development (default: production)
  -graphql.max-concurrency N         Max resolvers running at once, 0 = unlimited
  -graphql.tracing                   Add the tracing extension to results
  -otel.endpoint <addr>              OTLP collector endpoint
  -otel.service <name>               OpenTelemetry service name (default: graphexec)
  -v <level>                         Log verbosity (default: 0)
`

const execUsage = `exec FLAGS:
  -query <file>                      Query document, "-" reads stdin (required)
  -variables <json>                  Variables as a JSON object
  -operation <name>                  Operation to execute
  -graphql.introspection <bool>      Enable GraphQL introspection (default: true)
  -graphql.mode <mode>               production or development (default: production)
  -graphql.tracing                   Add the tracing extension to the result
  -pretty                            Pretty-print the JSON result
`

const printSchemaUsage = `print-schema FLAGS:
  -out <file>              Write SDL to file (default: stdout)
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return errors.New("missing command")
	}

	cmd, cmdArgs := args[0], args[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs, stderr)
	case "exec":
		return cmdExec(cmdArgs, stdin, stdout, stderr)
	case "print-schema":
		return cmdPrintSchema(cmdArgs, stdout, stderr)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "exec":
		fmt.Fprint(stdout, execUsage)
	case "print-schema":
		fmt.Fprint(stdout, printSchemaUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// engineFlags are the execution settings shared by serve and exec.
type engineFlags struct {
	introspection  bool
	mode           string
	maxConcurrency int
	tracing        bool
}

func (f *engineFlags) register(fs *flag.FlagSet) {
	fs.BoolVar(&f.introspection, "graphql.introspection", true, "Enable GraphQL introspection")
	fs.StringVar(&f.mode, "graphql.mode", string(executor.ModeProduction), "Error reporting mode")
	fs.BoolVar(&f.tracing, "graphql.tracing", false, "Add the tracing extension")
}

func (f *engineFlags) config() executor.Config {
	cfg := executor.DefaultConfig()
	cfg.Mode = executor.Mode(f.mode)
	cfg.MaxConcurrency = f.maxConcurrency
	cfg.TracingExtension = f.tracing
	return cfg
}

// newExecutor wires the demo library into an Executor.
func newExecutor(lib *library, f engineFlags, log logr.Logger, opts ...executor.Option) (*executor.Executor, error) {
	sch, reg, err := newLibraryRuntime(lib, f.introspection, log.WithName("library"))
	if err != nil {
		return nil, err
	}
	opts = append([]executor.Option{executor.WithConfig(f.config()), executor.WithLogger(log)}, opts...)
	return executor.NewExecutor(reg, sch, opts...)
}

func newLogger(w io.Writer, verbosity int) logr.Logger {
	stdr.SetVerbosity(verbosity)
	return stdr.New(log.New(w, "", log.LstdFlags))
}

func cmdServe(args []string, stderr io.Writer) error {
	addr := ":8080"
	pretty := false
	timeout := 10 * time.Second
	maxBody := int64(1 << 20)
	graphiql := true
	otelEndpoint := ""
	otelService := "graphexec"
	verbosity := 0
	var corsOrigins, metadataHeaders stringListFlag
	var ef engineFlags

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", timeout, "Per-request timeout")
	fs.Int64Var(&maxBody, "server.max-body", maxBody, "Maximum request body size")
	fs.Var(&corsOrigins, "server.cors-origin", "Allowed CORS origin")
	fs.Var(&metadataHeaders, "server.metadata-header", "Forward HTTP header to gRPC metadata")
	fs.BoolVar(&graphiql, "server.graphiql", graphiql, "Serve GraphiQL")
	ef.register(fs)
	fs.IntVar(&ef.maxConcurrency, "graphql.max-concurrency", 0, "Max resolvers running at once")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	fs.IntVar(&verbosity, "v", verbosity, "Log verbosity")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}
	logger := newLogger(stderr, verbosity)

	eventbus.Use(eventbus.New())
	tracer, shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	exec, err := newExecutor(newLibrary(), ef, logger, executor.WithMiddleware(tracer.FieldMiddleware()))
	if err != nil {
		return err
	}

	sopts := []server.Option{
		server.WithTimeout(timeout),
		server.WithMaxBodyBytes(maxBody),
		server.WithGraphiQL(graphiql),
		server.WithLogger(logger),
	}
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if len(corsOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(corsOrigins...))
	}
	if len(metadataHeaders) > 0 {
		sopts = append(sopts, server.WithMetadataHeaders(metadataHeaders...))
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", server.New(exec, sopts...))
	srv := &http.Server{Addr: addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("GraphQL server listening", "addr", addr, "mode", ef.mode)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func cmdExec(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	queryFile := ""
	variables := ""
	operation := ""
	pretty := false
	var ef engineFlags

	fs := flag.NewFlagSet("exec", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&queryFile, "query", queryFile, "Query document")
	fs.StringVar(&variables, "variables", variables, "Variables as a JSON object")
	fs.StringVar(&operation, "operation", operation, "Operation to execute")
	fs.BoolVar(&pretty, "pretty", pretty, "Pretty-print the JSON result")
	ef.register(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, execUsage)
		return err
	}
	if queryFile == "" {
		fmt.Fprint(stderr, execUsage)
		return errors.New("-query is required")
	}

	var query []byte
	var err error
	if queryFile == "-" {
		query, err = io.ReadAll(stdin)
	} else {
		query, err = os.ReadFile(queryFile)
	}
	if err != nil {
		return fmt.Errorf("read query: %w", err)
	}
	vars := map[string]any{}
	if variables != "" {
		if err := json.Unmarshal([]byte(variables), &vars); err != nil {
			return fmt.Errorf("parse variables: %w", err)
		}
	}

	exec, err := newExecutor(newLibrary(), ef, newLogger(stderr, 0))
	if err != nil {
		return err
	}
	res := server.Execute(context.Background(), exec, server.GraphQLRequest{
		Query:         string(query),
		OperationName: operation,
		Variables:     vars,
	}, server.ExecuteOptions{AllowMutations: true})

	enc := json.NewEncoder(stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res)
}

func cmdPrintSchema(args []string, stdout, stderr io.Writer) error {
	outFile := ""
	fs := flag.NewFlagSet("print-schema", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&outFile, "out", outFile, "Write SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, printSchemaUsage)
		return err
	}

	sch, err := schema.BuildFromSDL(librarySDL)
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	sdl := schema.Render(sch)
	if outFile == "" {
		fmt.Fprint(stdout, sdl)
		return nil
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}
