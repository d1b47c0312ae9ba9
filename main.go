package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MusicLab-Dev/Board/config"
	"github.com/MusicLab-Dev/Board/gpio"
	"github.com/MusicLab-Dev/Board/hardware"
	"github.com/MusicLab-Dev/Board/internal/boardlog"
	"github.com/MusicLab-Dev/Board/network"
	"github.com/MusicLab-Dev/Board/scheduler"
)

var log = boardlog.For("main")

// run does the actual work and returns the process exit code, so main
// itself stays a one-liner (spec §6: exit 0 normally, 1 on any
// unhandled startup error).
func run() int {
	configPath := flag.String("config-path", config.DefaultPath, "path to the board configuration file")
	flag.Parse()

	store, err := config.Load(*configPath)
	if err != nil {
		log.Error().Err(err).Str("path", *configPath).Msg("failed to load config")
		return 1
	}

	boardlog.SetLevel(boardlog.ParseLevel(store.Get("LogLevel", "info")))

	hw := hardware.NewModule(gpio.Stub{})

	netSettings := network.SettingsFromConfig(store, len(hardware.Pins))
	net, err := network.NewModule(netSettings)
	if err != nil {
		log.Error().Err(err).Msg("failed to construct network module")
		return 1
	}
	defer net.Close()

	tickRate := time.Duration(config.GetAs(store, "TickRateUs", 10)) * time.Microsecond
	hwDiscoveryRate := time.Duration(config.GetAs(store, "HardwareDiscoveryRateMs", 1000)) * time.Millisecond
	netDiscoveryRate := time.Duration(config.GetAs(store, "DiscoveryRateMs", 1000)) * time.Millisecond

	sched := scheduler.New(hw, net, tickRate, hwDiscoveryRate, netDiscoveryRate)

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT)
	go func() {
		sig := <-sigch
		log.Info().Str("signal", sig.String()).Msg("received signal, stopping scheduler")
		sched.Stop()
	}()

	sched.Run()

	return 0
}

func main() {
	os.Exit(run())
}
