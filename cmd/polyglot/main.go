package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/felixgeelhaar/polyglot/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

const pidFile = "polyglotd.pid"

// daemonAddr is replaced by the configured bind address when a config is present
var daemonAddr = "http://127.0.0.1:7433"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if cfg, err := config.LoadLocalConfig(); err == nil {
		daemonAddr = daemonURL(cfg.Daemon)
	}

	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string, out io.Writer) error {
	switch command {
	case "start":
		return cmdStart(out)
	case "stop":
		return cmdStop(out)
	case "status":
		return cmdStatus(out)
	case "logs":
		return cmdLogs(out)
	case "config":
		return cmdConfig(out)
	case "provider":
		return cmdProvider(args, out)
	case "languages":
		return cmdLanguages(args, out)
	case "course":
		return cmdCourse(args, out)
	case "events":
		return cmdEvents(args, out)
	case "mcp":
		return cmdMCP(args)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	case "version", "-v", "--version":
		fmt.Fprintf(out, "polyglot %s\n", Version)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command: %s", command)
	}
}

// daemonURL builds the base URL of a daemon listening on cfg
func daemonURL(cfg config.DaemonConfig) string {
	host := cfg.Bind
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Port)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, strings.TrimSpace(`
Polyglot - interactive coding curriculum with an AI tutor

Usage:
  polyglot <command> [arguments]

Daemon:
  start                         Start the polyglotd daemon
  stop                          Stop the daemon
  status                        Show daemon status
  logs                          Show recent daemon logs

Configuration:
  config                        Show the current configuration
  provider list                 List LLM providers
  provider set-key <name>       Store an API key for a provider
  provider set-default <name>   Choose the default provider

Curriculum:
  languages                     List languages and their levels
  course <language> <level>     Show the lesson outline of a course

Integration:
  mcp [-http addr]              Serve the MCP tools on stdio or HTTP
  events tail                   Print events from the AMQP queue

Other:
  help                          Show this help
  version                       Show the version`))
}
