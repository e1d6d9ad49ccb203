package main

// this file contains all the code that directly uses the viper package.
import (
	"github.com/spf13/viper"

	"github.com/yunginnanet/ftdi-chirpgen/pkg/chirp"
)

type rampSettings struct {
	Start uint32 `mapstructure:"start"`
	End   uint32 `mapstructure:"end"`
	Step  uint32 `mapstructure:"step"`
}

type scanSettings struct {
	Dividers  uint32   `mapstructure:"dividers"`
	BandLists []uint32 `mapstructure:"band_lists"`
}

type timingSettings struct {
	LoopPeriod uint32 `mapstructure:"loop_period"`
	DACDiv     uint32 `mapstructure:"dac_div"`
	TrigTime   uint64 `mapstructure:"trig_time"`
}

// loadConfig reads configuration from a TOML-formatted file: the given
// path, or a file called 'chirpgen.toml' looked for in /etc/chirpgen and
// then the working directory. Values present in the file are queued over
// the bring-up defaults already loaded in regs; they apply at the first
// tick. Returns true if a config file was read.
func loadConfig(regs *chirp.RegisterFile, path string) bool {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("chirpgen")
		viper.AddConfigPath("/etc/chirpgen")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		return false
	}

	if viper.IsSet("ramp") {
		var ramp rampSettings
		if viper.UnmarshalKey("ramp", &ramp) == nil {
			_ = regs.Write(chirp.RegRampStart, ramp.Start)
			_ = regs.Write(chirp.RegRampEnd, ramp.End)
			_ = regs.Write(chirp.RegRampStep, ramp.Step)
		}
	}

	if viper.IsSet("scan") {
		var scan scanSettings
		if viper.UnmarshalKey("scan", &scan) == nil {
			_ = regs.Write(chirp.RegDividerList, scan.Dividers)
			for i, bl := range scan.BandLists {
				if i >= chirp.NumDividers {
					break
				}
				_ = regs.Write(chirp.RegBandList0+chirp.Register(i), bl)
			}
		}
	}

	if viper.IsSet("timing") {
		var timing timingSettings
		if viper.UnmarshalKey("timing", &timing) == nil {
			_ = regs.Write(chirp.RegLoopPeriod, timing.LoopPeriod)
			_ = regs.Write(chirp.RegDACDiv, timing.DACDiv)
			_ = regs.Write(chirp.RegTrigTimeLo, uint32(timing.TrigTime))
			_ = regs.Write(chirp.RegTrigTimeHi, uint32(timing.TrigTime>>32))
		}
	}

	return true
}
