// Command interface drives a benchmarking run: it spawns no nodes
// itself (those are started separately and register via CONNECT) but
// owns the sweep plan, distributes SETUP/DEALTHIS/RECONSTRUCT/STOP, and
// writes the concluded results once every SubArgs has been swept.
package main

import (
	"flag"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"avss-bench/internal/orchestrator"
	"avss-bench/utils"
)

func main() {
	silent := flag.Bool("silent", false, "Disable logs")
	listenAddr := flag.String("listen", ":9000", "address to accept CONNECT/OUTPUT traffic on")
	flag.Parse()

	utils.SetupLogger()
	if *silent {
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}

	args := flag.Args()
	if len(args) < 1 {
		log.Fatal().Str("layer", "ORCH").Msg("usage: interface [-listen=:9000] <config.json>")
	}
	configPath := args[0]

	logger := utils.LayerLogger("ORCH")

	plan, err := orchestrator.LoadConfigFile(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("layer", "ORCH").Msg("failed to load config")
	}

	in := orchestrator.NewInterface(*listenAddr, plan, logger)
	ln, err := in.Serve()
	if err != nil {
		log.Fatal().Err(err).Str("layer", "ORCH").Msg("failed to start listener")
	}
	defer ln.Close()

	logger.Info().Str("addr", ln.Addr().String()).Msg("interface listening")

	if err := in.Run(); err != nil {
		log.Fatal().Err(err).Str("layer", "ORCH").Msg("run failed")
	}
	logger.Info().Str("output", plan.Output).Msg("run concluded")
}
