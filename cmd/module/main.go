package main

import (
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/discovery"
	pitch "pitch_compliance"
)

func main() {
	// ModularMain can take multiple APIModel arguments, if your module implements multiple models.
	module.ModularMain(
		resource.APIModel{API: sensor.API, Model: pitch.ExperimentModel},
		resource.APIModel{API: discovery.API, Model: pitch.BravoDiscoveryModel},
	)
}
