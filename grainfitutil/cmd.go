/*
Copyright © 2019 the GrainFit authors.
This file is part of GrainFit.

GrainFit is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GrainFit is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GrainFit.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package grainfitutil holds the configuration and command-line
// interface for the GrainFit dust grain size distribution fitter.
package grainfitutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/grainfit"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to GrainFit.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "ObservationFile",
			usage: `
              ObservationFile is the path to the NetCDF file holding the
              observed extinction curve and the optional depletion,
              infrared emission, and scattering parameter data.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags(), propsCmd.Flags()},
		},
		{
			name: "GrainFiles",
			usage: `
              GrainFiles maps grain composition names to the paths of the
              NetCDF files holding their precomputed single-grain
              properties. The names must be known compositions; run
              'grainfit compositions' for the list.`,
			defaultVal: map[string]string{"astro-silicates": "", "astro-carbonaceous": ""},
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags(), propsCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the NetCDF file where the fit
              results will be written.`,
			shorthand:  "o",
			defaultVal: "grainfit_output.nc",
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags(), propsCmd.Flags()},
		},
		{
			name: "FieldStrength",
			usage: `
              FieldStrength is the strength of the radiation field heating
              the grains, in units of the reference interstellar field.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags(), propsCmd.Flags()},
		},
		{
			name: "Fit.Walkers",
			usage: `
              Fit.Walkers is the number of walkers in the sampling
              ensemble. It must be even and at least twice the number of
              fit parameters. The default of zero chooses automatically.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags()},
		},
		{
			name: "Fit.Burn",
			usage: `
              Fit.Burn is the number of burn-in sampling steps, which are
              discarded before the production steps begin.`,
			defaultVal: 500,
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags()},
		},
		{
			name: "Fit.Steps",
			usage: `
              Fit.Steps is the number of production sampling steps.`,
			defaultVal: 1000,
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags()},
		},
		{
			name: "Fit.Seed",
			usage: `
              Fit.Seed seeds the random number generator. Runs with the
              same seed and configuration give identical results.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags()},
		},
		{
			name: "Fit.Procs",
			usage: `
              Fit.Procs is the number of concurrent likelihood
              evaluations. The default of zero means one per CPU.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags()},
		},
		{
			name: "Grains.MinWave",
			usage: `
              Grains.MinWave is the minimum wavelength, in microns, of the
              extinction grid to keep when reading grain property files.
              Zero keeps the full grid.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags(), propsCmd.Flags()},
		},
		{
			name: "Grains.MaxWave",
			usage: `
              Grains.MaxWave is the maximum wavelength, in microns, of the
              extinction grid to keep when reading grain property files.
              Zero keeps the full grid.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags(), propsCmd.Flags()},
		},
		{
			name: "Grains.MinEmissionWave",
			usage: `
              Grains.MinEmissionWave is the minimum wavelength, in
              microns, of the emission grid to keep when reading grain
              property files. Zero keeps the full grid.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags(), propsCmd.Flags()},
		},
		{
			name: "Grains.MaxEmissionWave",
			usage: `
              Grains.MaxEmissionWave is the maximum wavelength, in
              microns, of the emission grid to keep when reading grain
              property files. Zero keeps the full grid.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags(), propsCmd.Flags()},
		},
		{
			name: "Grains.EveryNth",
			usage: `
              Grains.EveryNth keeps every nth grain size when reading
              grain property files, to reduce the number of fit
              parameters. One keeps every size.`,
			defaultVal: 5,
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags(), propsCmd.Flags()},
		},
		{
			name: "Resample",
			usage: `
              Resample specifies whether to resample the grain property
              grids onto the observed wavelength grids before fitting.
              If false, the grids must already match the observations.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags(), propsCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GRAINFIT")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(fitCmd)
	Root.AddCommand(propsCmd)
	Root.AddCommand(compositionsCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("grainfit: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "grainfit",
	Short: "Fit dust grain size distributions to observations.",
	Long: `GrainFit fits interstellar dust grain size distributions to observed
extinction, elemental depletion, infrared emission, and scattering data.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default
settings. Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using command-line
arguments, or by setting environment variables in the format 'GRAINFIT_var'
where 'var' is the name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of GrainFit.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("GrainFit v%s\n", grainfit.Version)
	},
	DisableAutoGenTag: true,
}

// fitCmd is a command that fits the size distributions to the
// observations.
var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit size distributions to observations.",
	Long: `fit samples the posterior of the grain size distribution parameters
given the observations in ObservationFile, using the grain property files in
GrainFiles, and writes the best fit and its uncertainties to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		grainFiles, err := GetStringMapString("GrainFiles", Cfg)
		if err != nil {
			return err
		}
		return Fit(
			Cfg.GetString("ObservationFile"),
			grainFiles,
			Cfg.GetString("OutputFile"),
			Cfg.GetFloat64("FieldStrength"),
			tableOptions(Cfg),
			Cfg.GetBool("Resample"),
			grainfit.FitConfig{
				Walkers:       Cfg.GetInt("Fit.Walkers"),
				Burn:          Cfg.GetInt("Fit.Burn"),
				Steps:         Cfg.GetInt("Fit.Steps"),
				Seed:          int64(Cfg.GetInt("Fit.Seed")),
				Procs:         Cfg.GetInt("Fit.Procs"),
				FieldStrength: Cfg.GetFloat64("FieldStrength"),
			},
		)
	},
	DisableAutoGenTag: true,
}

// propsCmd is a command that evaluates the model with the default size
// distributions and saves the result.
var propsCmd = &cobra.Command{
	Use:   "props",
	Short: "Save the starting model properties.",
	Long: `props evaluates the dust model using the initial guess size
distributions, conditioned to the observations in ObservationFile, and writes
the resulting extinction, abundances, and emission to OutputFile. It is useful
for checking the model setup before a fit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		grainFiles, err := GetStringMapString("GrainFiles", Cfg)
		if err != nil {
			return err
		}
		return Props(
			Cfg.GetString("ObservationFile"),
			grainFiles,
			Cfg.GetString("OutputFile"),
			Cfg.GetFloat64("FieldStrength"),
			tableOptions(Cfg),
			Cfg.GetBool("Resample"),
		)
	},
	DisableAutoGenTag: true,
}

// compositionsCmd lists the known grain compositions.
var compositionsCmd = &cobra.Command{
	Use:   "compositions",
	Short: "List the known grain compositions.",
	Long: `compositions lists the grain composition names that may be used as
keys in the GrainFiles configuration option.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(strings.Join(grainfit.KnownCompositions(), "\n"))
	},
	DisableAutoGenTag: true,
}

func tableOptions(cfg *viper.Viper) grainfit.TableOptions {
	return grainfit.TableOptions{
		MinWave:         cfg.GetFloat64("Grains.MinWave"),
		MaxWave:         cfg.GetFloat64("Grains.MaxWave"),
		MinEmissionWave: cfg.GetFloat64("Grains.MinEmissionWave"),
		MaxEmissionWave: cfg.GetFloat64("Grains.MaxEmissionWave"),
		EveryNth:        cfg.GetInt("Grains.EveryNth"),
	}
}

// GetStringMapString returns a map[string]string configuration
// variable, accepting either a map or a JSON-encoded string.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch t := i.(type) {
	case string:
		out := map[string]string{}
		if err := json.Unmarshal([]byte(t), &out); err != nil {
			return nil, fmt.Errorf("grainfit: parsing configuration variable %s: %v", varName, err)
		}
		return out, nil
	default:
		out, err := cast.ToStringMapStringE(i)
		if err != nil {
			return nil, fmt.Errorf("grainfit: parsing configuration variable %s: %v", varName, err)
		}
		return out, nil
	}
}
