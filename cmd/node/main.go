// Command node runs a single AVSS party: it listens for SETUP/SHARE/
// REST/RECONSTRUCT/STOP traffic from its peers and the interface, and
// reports OUTPUT back to the interface that spawned it.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"avss-bench/internal/kzg10"
	"avss-bench/internal/node"
	"avss-bench/utils"
)

func main() {
	silent := flag.Bool("silent", false, "Disable logs")
	listenAddr := flag.String("listen", ":0", "address to listen on for peer and interface traffic")
	flag.Parse()

	utils.SetupLogger()
	if *silent {
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}

	args := flag.Args()
	if len(args) < 1 {
		log.Fatal().Str("layer", "NODE").Msg("usage: node [-listen=:0] <interface-addr>")
	}
	interfaceAddr := args[0]

	logger := utils.LayerLogger("NODE")
	suite := kzg10.NewSuite()

	n, err := node.New(*listenAddr, interfaceAddr, suite, logger)
	if err != nil {
		log.Fatal().Err(err).Str("layer", "NODE").Msg("failed to construct node")
	}

	ln, err := n.Serve()
	if err != nil {
		log.Fatal().Err(err).Str("layer", "NODE").Msg("failed to start listener")
	}
	defer ln.Close()

	logger.Info().Str("addr", ln.Addr().String()).Msg("node listening")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
