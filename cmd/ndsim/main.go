// Copyright (c) 2020 Cisco Systems and/or its affiliates.
// Licensed under the Apache License, Version 2.0 (the "License");
// that can be found in the LICENSE file in the root of the source
// tree.
package main

import (
	"fmt"
	"os"
	"time"

	"ndsim/emu/core"
	"ndsim/emu/topo"

	"github.com/akamensky/argparse"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/op/go-logging"
)

const (
	VERSION = "0.1"
)

var log = logging.MustGetLogger("ndsim")

type MainArgs struct {
	file     *string
	time     *int
	capture  *string
	seed     *int
	verbose  *bool
	zero     *bool
	version  *bool
	duration time.Duration
}

func parseMainArgs() *MainArgs {
	var args MainArgs
	parser := argparse.NewParser("ndsim", "IPv6 neighbor discovery simulator")

	args.file = parser.String("f", "file", &argparse.Options{Default: "topo.yaml", Help: "Topology file"})
	args.time = parser.Int("t", "time", &argparse.Options{Default: 60, Help: "Time of the simulation in sec"})
	args.capture = parser.String("c", "capture", &argparse.Options{Default: "", Help: "Path to save the pcap file of all the links"})
	args.seed = parser.Int("", "seed", &argparse.Options{Default: 0, Help: "Seed of the simulation, overrides the topology file"})
	args.verbose = parser.Flag("v", "verbose", &argparse.Options{Default: false, Help: "Debug logs and dump the neighbor caches"})
	args.zero = parser.Flag("z", "zero", &argparse.Options{Default: false, Help: "Show zero counters"})
	args.version = parser.Flag("V", "version", &argparse.Options{Default: false, Help: "show ndsim version"})

	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}
	args.duration = time.Duration(*args.time) * time.Second

	return &args
}

func dumpState(t *topo.Topology) {
	for _, n := range t.Sim.Nodes() {
		plug := t.Node(n.Name)
		if plug == nil {
			continue
		}
		fmt.Printf("node %s\n", n.Name)
		spew.Dump(plug.Nd().Neighbours())
		spew.Dump(n.Rt6.Routes())
	}
}

func RunSim(args *MainArgs) int {
	if *args.version {
		fmt.Printf("ndsim version is %s \n", VERSION)
		return 0
	}
	core.ConfigureLogger(*args.verbose)

	ty, err := topo.LoadFile(*args.file)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}
	if *args.seed != 0 {
		ty.Seed = int64(*args.seed)
	}
	t, err := topo.Build(ty)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}
	runId := uuid.NewString()
	log.Infof("run %s: %s seed %d for %v", runId, *args.file, ty.Seed, args.duration)

	if *args.capture != "" {
		f, err := os.Create(*args.capture)
		if err != nil {
			log.Errorf("%v", err)
			return 1
		}
		defer f.Close()
		c, err := core.NewCapture(f)
		if err != nil {
			log.Errorf("%v", err)
			return 1
		}
		for _, l := range t.Sim.Links() {
			l.SetCapture(c)
		}
		defer func() { log.Infof("run %s: %d frames captured", runId, c.Frames()) }()
	}

	t.Run(ty, args.duration)
	if *args.verbose {
		dumpState(t)
	}
	t.Stop()
	fmt.Println(t.Sim.MarshalIndent(*args.zero))
	return 0
}

func main() {
	os.Exit(RunSim(parseMainArgs()))
}
