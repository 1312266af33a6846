// kpi-report drives the gateway's reporting tools from the command line:
// list the catalog, run the daily report, or ask the supervision assistant.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/logimax/ifood-gateway/pkg/config"
	"github.com/logimax/ifood-gateway/pkg/sdk/client"
)

func main() {
	_ = godotenv.Load()

	var (
		addr    = flag.String("addr", config.EnvOr("GATEWAY_URL", "http://localhost:8080"), "gateway base URL")
		token   = flag.String("token", os.Getenv("GATEWAY_TOKEN"), "bearer token")
		tool    = flag.String("tool", "generate_daily_report", "tool to invoke")
		ask     = flag.String("ask", "", "question for ask_assistant (overrides -tool)")
		list    = flag.Bool("list", false, "list available tools and exit")
		timeout = flag.Duration("timeout", 60*time.Second, "overall timeout")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := client.New(*addr, *token)
	info, err := c.Initialize(ctx)
	if err != nil {
		log.Error("handshake failed", "addr", *addr, "error", err)
		os.Exit(1)
	}
	log.Info("connected", "server", info.ServerInfo.Name, "version", info.ServerInfo.Version)

	if *list {
		descriptors, err := c.ListTools(ctx)
		if err != nil {
			log.Error("tools/list failed", "error", err)
			os.Exit(1)
		}
		for _, d := range descriptors {
			fmt.Printf("%-24s %s\n", d.Name, d.Description)
		}
		return
	}

	name := *tool
	var args any
	if *ask != "" {
		name = "ask_assistant"
		args = map[string]string{"question": *ask}
	}

	text, err := c.CallTool(ctx, name, args)
	if err != nil {
		log.Error("tool call failed", "tool", name, "error", err)
		os.Exit(1)
	}
	fmt.Println(text)
}
