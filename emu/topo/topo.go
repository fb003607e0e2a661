// Copyright (c) 2020 Cisco Systems and/or its affiliates.
// Licensed under the Apache License, Version 2.0 (the "License");
// that can be found in the LICENSE file in the root of the source
// tree.

package topo

import (
	"fmt"
	"os"

	"github.com/go-playground/validator"
	"github.com/intel-go/fastjson"
	"github.com/op/go-logging"
	"gopkg.in/yaml.v2"
)

var log = logging.MustGetLogger("topo")

/* topology file

tick_ms: 10
seed: 1
links:
  - {name: lan, latency_ms: 1}
nodes:
  - name: r1
    router: true
    interfaces:
      - {name: eth0, link: lan, mac: "00:00:01:00:00:02", addresses: ["2001:db8:1::1/64"]}
    nd: {adv_prefixes: [{prefix: "2001:db8:1::/64", on_link: true, autonomous: true}]}
traffic:
  - {at_ms: 3000, from: h1, to: "2001:db8:1::1", count: 3, interval_ms: 1000}
*/

type LinkYaml struct {
	Name      string `yaml:"name" validate:"required"`
	LatencyMs uint32 `yaml:"latency_ms"`
}

type InterfaceYaml struct {
	Name      string   `yaml:"name" validate:"required"`
	Link      string   `yaml:"link" validate:"required"`
	Mac       string   `yaml:"mac" validate:"required,mac"`
	Addresses []string `yaml:"addresses" validate:"dive,cidrv6"`
}

type RouteYaml struct {
	Prefix string `yaml:"prefix" validate:"required,cidrv6"`
	Via    string `yaml:"via" validate:"omitempty,ipv6"` // empty for an on-link prefix
	If     string `yaml:"if" validate:"required"`
}

type NodeYaml struct {
	Name       string                 `yaml:"name" validate:"required"`
	Router     bool                   `yaml:"router"`
	Interfaces []InterfaceYaml        `yaml:"interfaces" validate:"required,min=1,dive"`
	Routes     []RouteYaml            `yaml:"routes" validate:"dive"`
	Nd         map[string]interface{} `yaml:"nd"` // init json of the ipv6 plugin
}

// TrafficYaml echo requests or udp datagrams sent by a node
type TrafficYaml struct {
	AtMs       uint32 `yaml:"at_ms"`
	From       string `yaml:"from" validate:"required"`
	To         string `yaml:"to" validate:"required,ipv6"`
	If         string `yaml:"if"` // outgoing interface of link-local destinations
	Kind       string `yaml:"kind" validate:"omitempty,oneof=ping udp"`
	Port       uint16 `yaml:"port"`
	Count      uint32 `yaml:"count"`
	IntervalMs uint32 `yaml:"interval_ms"`
	Size       uint16 `yaml:"size" validate:"lte=1400"`
}

type TopoYaml struct {
	TickMs  uint32        `yaml:"tick_ms"`
	Seed    int64         `yaml:"seed"`
	Links   []LinkYaml    `yaml:"links" validate:"required,min=1,dive"`
	Nodes   []NodeYaml    `yaml:"nodes" validate:"required,min=1,dive"`
	Traffic []TrafficYaml `yaml:"traffic" validate:"dive"`
}

// Load decode and validate a topology, unknown keys are errors
func Load(data []byte) (*TopoYaml, error) {
	var t TopoYaml
	if err := yaml.UnmarshalStrict(data, &t); err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	if err := validator.New().Struct(&t); err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	return &t, nil
}

// LoadFile read and Load a topology file
func LoadFile(name string) (*TopoYaml, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// jsonValue yaml maps have interface{} keys, json objects need string keys
func jsonValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = jsonValue(e)
		}
		return m
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[k] = jsonValue(e)
		}
		return m
	case []interface{}:
		r := make([]interface{}, len(t))
		for i, e := range t {
			r[i] = jsonValue(e)
		}
		return r
	}
	return v
}

// NdJson the init json of the ipv6 plugin, nil for the defaults
func (o *NodeYaml) NdJson() ([]byte, error) {
	if len(o.Nd) == 0 {
		return nil, nil
	}
	return fastjson.Marshal(jsonValue(o.Nd))
}
