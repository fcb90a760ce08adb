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

package grainfitutil

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/grainfit"
)

// Log is the logger used for progress reporting. By default it is the
// logrus standard logger.
var Log logrus.FieldLogger = logrus.StandardLogger()

// loadModel reads the grain property files in grainFiles and the
// observations in obsFile and returns the model, resampled onto the
// observed grids if resample is true, along with the observations.
func loadModel(obsFile string, grainFiles map[string]string, opts grainfit.TableOptions, resample bool) (*grainfit.GrainModel, *grainfit.ObservationSet, error) {
	if obsFile == "" {
		return nil, nil, fmt.Errorf("grainfit: no observation file specified")
	}
	obs, err := grainfit.LoadObservations(obsFile)
	if err != nil {
		return nil, nil, err
	}
	Log.WithFields(logrus.Fields{
		"file":          obsFile,
		"ext_points":    len(obs.ExtWavelengths),
		"fit_depletion": obs.FitDepletions,
		"fit_emission":  obs.FitIREmission,
		"fit_scatter":   obs.FitScatParam,
	}).Info("loaded observations")

	// Load the compositions in name order so that the parameter
	// layout does not depend on map iteration order.
	names := make([]string, 0, len(grainFiles))
	for name := range grainFiles {
		names = append(names, name)
	}
	sort.Strings(names)
	comps := make([]*grainfit.GrainComposition, 0, len(names))
	for _, name := range names {
		file := grainFiles[name]
		if file == "" {
			return nil, nil, fmt.Errorf("grainfit: no grain property file specified for composition %s", name)
		}
		c, err := grainfit.LoadGrainComposition(name, file, opts)
		if err != nil {
			return nil, nil, err
		}
		Log.WithFields(logrus.Fields{
			"composition": name,
			"sizes":       c.NSizes(),
		}).Info("loaded grain properties")
		comps = append(comps, c)
	}
	m, err := grainfit.NewGrainModel(comps...)
	if err != nil {
		return nil, nil, err
	}
	if resample {
		if m, err = m.ResampleTo(obs); err != nil {
			return nil, nil, err
		}
	}
	if err := obs.CheckAgainst(m); err != nil {
		return nil, nil, err
	}
	return m, obs, nil
}

// Fit fits the grain size distributions to the observations and writes
// the result to outputFile.
func Fit(obsFile string, grainFiles map[string]string, outputFile string, fieldStrength float64, opts grainfit.TableOptions, resample bool, cfg grainfit.FitConfig) error {
	m, obs, err := loadModel(obsFile, grainFiles, opts, resample)
	if err != nil {
		return err
	}
	e, err := grainfit.NewEvaluator(m, obs, fieldStrength)
	if err != nil {
		return err
	}
	Log.WithFields(logrus.Fields{
		"parameters": m.NParams(),
		"burn":       cfg.Burn,
		"steps":      cfg.Steps,
	}).Info("starting fit")

	cfg.Progress = func(step, total int) {
		if step%100 == 0 || step == total {
			Log.WithFields(logrus.Fields{
				"step":  step,
				"total": total,
			}).Info("sampling")
		}
	}
	r, err := grainfit.Fit(e, nil, cfg)
	if err != nil {
		return err
	}
	Log.WithFields(logrus.Fields{
		"lnprob":     r.BestLnP,
		"acceptance": r.Acceptance,
	}).Info("fit finished")

	return grainfit.SaveResults(outputFile, m, r.Best, r.PlusUnc, r.MinusUnc, fieldStrength)
}

// Props evaluates the model at the conditioned initial guess and writes
// the resulting properties to outputFile.
func Props(obsFile string, grainFiles map[string]string, outputFile string, fieldStrength float64, opts grainfit.TableOptions, resample bool) error {
	m, obs, err := loadModel(obsFile, grainFiles, opts, resample)
	if err != nil {
		return err
	}
	params := grainfit.InitialGuess(m, obs)
	e, err := grainfit.NewEvaluator(m, obs, fieldStrength)
	if err != nil {
		return err
	}
	Log.WithFields(logrus.Fields{
		"parameters": m.NParams(),
		"lnprob":     e.LogProb(params),
	}).Info("evaluated starting model")

	unc := make([]float64, len(params))
	return grainfit.SaveResults(outputFile, m, params, unc, unc, fieldStrength)
}
