package main

import (
	"flag"
	"os"

	"github.com/l0nax/go-spew/spew"
	"github.com/rs/zerolog"

	"github.com/yunginnanet/ftdi-chirpgen/pkg/chirp"
	"github.com/yunginnanet/ftdi-chirpgen/pkg/ft232h"
)

var log zerolog.Logger

func init() {
	cw := zerolog.ConsoleWriter{Out: os.Stdout}
	log = zerolog.New(cw).With().Timestamp().Logger()
}

var pprint = spew.ConfigState{
	Indent:          "\t",
	SortKeys:        true,
	HighlightValues: true,
	HighlightHex:    true,
}

func flags() (config string, loops uint, budget uint64, dump bool, replay bool, ftindex int, synthCS uint, dacCS uint) {
	cfi := flag.String("config", "", "config file (default: chirpgen.toml in /etc/chirpgen or .)")
	lpi := flag.Uint("loops", 4, "chirp loops to run")
	bdi := flag.Uint64("budget", 1<<24, "tick budget per loop")
	dmi := flag.Bool("dump", false, "dump the transmit trace")
	rpi := flag.Bool("replay", false, "replay the trace over an FT232H")
	fti := flag.Int("FT232H", 0, "FT232H Index")
	sci := flag.Uint("SYNTH_CS", 0x10, "Synthesizer Chip Select (GPIO)")
	dci := flag.Uint("DAC_CS", 0x40, "DAC Chip Select (GPIO)")
	flag.Parse()
	return *cfi, *lpi, *bdi, *dmi, *rpi, *fti, *sci, *dci
}

func main() {
	config, loops, budget, dump, replay, ftindex, synthCS, dacCS := flags()

	regs := chirp.DefaultRegisters()
	if loadConfig(regs, config) {
		log.Info().Msg("loaded configuration file")
	} else {
		log.Warn().Msg("no config file found, using bring-up defaults")
	}
	if err := regs.Write(chirp.RegCtrl, chirp.CtrlEnable); err != nil {
		log.Fatal().Err(err).Msg("failed to enable core")
	}

	core := chirp.NewCore(regs)

	log.Info().Uint("loops", loops).Msg("running chirp core")
	for i := uint(0); i < loops; i++ {
		ticks, err := core.RunLoops(1, budget)
		if err != nil {
			log.Fatal().Err(err).Uint64("ticks", ticks).Msg("run did not complete")
		}
		log.Info().
			Uint32("loop", core.LoopCount()).
			Uint64("ticks", ticks).
			Uint("band", core.BandIndex()).
			Uint("divider", core.DividerIndex()).
			Msg("chirp loop complete")
	}

	log.Info().
		Uint64("ticks", core.TickCount()).
		Uint32("loops", core.LoopCount()).
		Int("trace", len(core.Trace())).
		Msg("run complete")

	if dump {
		pprint.Fdump(os.Stdout, core.Trace())
	}

	if !replay {
		return
	}

	spi, err := ft232h.ConnectFT232h(ft232h.ByIndex(ftindex))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to FT232H")
	}

	log.Info().Any("info", spi.Info()).
		Msgf("connected to FT232H: %s", spi)

	spiCfg := spi.FT232H.SPI.GetConfig()
	spiCfg.Clock = 1000000
	spiCfg.ActiveLow = false

	log.Debug().Any("config", spiCfg).Msg("initializing SPI")
	if err = spi.SPI.Config(spiCfg); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize SPI")
	}

	prog := ft232h.NewProgrammer(spi)
	if err = prog.SetSynthCS(synthCS); err != nil {
		log.Fatal().Err(err).Msg("failed to configure synth chip select")
	}
	if err = prog.SetDACCS(dacCS); err != nil {
		log.Fatal().Err(err).Msg("failed to configure DAC chip select")
	}

	log.Info().Msg("replaying trace")
	if err = prog.Replay(core.TakeTrace()); err != nil {
		log.Fatal().Err(err).Msg("replay failed")
	}

	if err = spi.Close(); err != nil {
		log.Fatal().Err(err).Msg("failed to close FT232H")
	}

	log.Info().Msg("done")
}
