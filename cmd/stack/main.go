package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/thaidata-cloud/lexrag/internal/config"
	logpkg "github.com/thaidata-cloud/lexrag/internal/logger"
	"github.com/thaidata-cloud/lexrag/internal/stack"
	"github.com/thaidata-cloud/lexrag/internal/version"
)

const usage = `Usage: stack [flags] <command>

Commands:
  up              create the network and start ingester, api and app
  down            stop and remove the stack containers and network
  status          show the state of every declared service
  logs <service>  print a service's log output

Flags:
`

func main() {
	_ = godotenv.Load()

	corpusDir := flag.String("corpus", "./corpus", "host directory mounted into the ingester")
	model := flag.String("model", "", "language model name for the app (default qwen2:0.5b)")
	follow := flag.Bool("follow", false, "follow log output (logs command)")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	logger, err := logpkg.New(config.GetEnv(), "")
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("lexrag stack",
		zap.String("version", version.Version),
		zap.String("command", flag.Arg(0)),
	)

	engine, err := stack.NewEngine(logger)
	if err != nil {
		logger.Fatal("Failed to connect to container engine", zap.Error(err))
	}

	spec := stack.DefaultSpec(stack.SpecConfig{
		CorpusDir: *corpusDir,
		ModelName: *model,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch flag.Arg(0) {
	case "up":
		if err := engine.Up(ctx, spec); err != nil {
			logger.Fatal("Stack up failed", zap.Error(err))
		}
		logger.Info("Stack is up",
			zap.String("api", "http://localhost:8000"),
			zap.String("app", "http://localhost:8501"),
		)

	case "down":
		if err := engine.Down(ctx, spec); err != nil {
			logger.Fatal("Stack down failed", zap.Error(err))
		}
		logger.Info("Stack removed")

	case "status":
		statuses, err := engine.Status(ctx, spec)
		if err != nil {
			logger.Fatal("Stack status failed", zap.Error(err))
		}
		fmt.Printf("%-10s %-22s %-10s %s\n", "SERVICE", "CONTAINER", "STATE", "STATUS")
		for _, st := range statuses {
			fmt.Printf("%-10s %-22s %-10s %s\n", st.Service, st.Container, st.State, st.Status)
		}

	case "logs":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "logs requires a service name")
			os.Exit(2)
		}
		if err := engine.Logs(ctx, spec, flag.Arg(1), *follow); err != nil {
			logger.Fatal("Stack logs failed", zap.Error(err))
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", flag.Arg(0))
		flag.Usage()
		os.Exit(2)
	}
}
