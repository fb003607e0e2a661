// Copyright (c) 2020 Cisco Systems and/or its affiliates.
// Licensed under the Apache License, Version 2.0 (the "License");
// that can be found in the LICENSE file in the root of the source
// tree.

package core

import (
	"fmt"
	"sort"
	"strings"
)

type IPluginIf interface {
	OnEvent(msg string, a, b interface{})
	OnRemove(o *PluginCtx) // call before delete
}

/* PluginBase plugin base that should be included in any plugin

type PluginIpv6Node struct {
	PluginBase
	nd *NdCtx
}

*/
type PluginBase struct {
	Node *CNodeCtx
	Sim  *CSimCtx
	I    IPluginIf
	Ext  interface{} // extention
}

func (o *PluginBase) InitPluginBase(ctx *PluginCtx, ext interface{}) {
	o.Node = ctx.Node
	o.Sim = ctx.Node.Sim
	o.Ext = ext
}

func (o *PluginBase) RegisterEvents(ctx *PluginCtx, events []string, i IPluginIf) {
	o.I = i
	ctx.RegisterEvents(o, events)
}

type IPluginRegister interface {
	NewPlugin(c *PluginCtx, initJson []byte) (*PluginBase, error) // call to create a new plugin
}

type MapPlugins map[string]*PluginBase
type MapEventBus map[string][]*PluginBase // string is the msg name

func (o MapEventBus) Add(msg string, vo *PluginBase) {

	v := o[msg]
	for _, obj := range v {
		if obj == vo {
			return
		}
	}
	v = append(v, vo)
	o[msg] = v
}

func (o MapEventBus) Remove(msg string, vo *PluginBase) {
	v, ok := o[msg]
	if !ok {
		return
	}
	for i, obj := range v {
		if obj == vo {
			v = append(v[:i], v[i+1:]...)
			break
		}
	}
	o[msg] = v
}

// BroadcastMsg In case vo is provided the msg will be filtered (not provided) to this plugin
// used in case we want to filter message to the same object the publish them
func (o MapEventBus) BroadcastMsg(vo *PluginBase, msg string, a, b interface{}) {
	v, ok := o[msg]
	if !ok {
		return
	}
	for _, obj := range v {
		if obj != vo {
			obj.I.OnEvent(msg, a, b)
		}
	}
}

// EventListener a non plugin subscriber of the event bus (tests, cli)
type EventListener func(msg string, a, b interface{})

func (o EventListener) OnEvent(msg string, a, b interface{}) {
	o(msg, a, b)
}

func (o EventListener) OnRemove(ctx *PluginCtx) {
}

/* PluginCtx manage the plugins of one node */
type PluginCtx struct {
	Node       *CNodeCtx
	mapPlugins MapPlugins
	eventBus   MapEventBus // event bus
}

func NewPluginCtx(node *CNodeCtx) *PluginCtx {
	o := new(PluginCtx)
	o.Node = node
	o.mapPlugins = make(MapPlugins)
	o.eventBus = make(MapEventBus)
	return o
}

// CreatePlugins create plugins, initJson[i] is the init json of plugins[i] (may be nil)
func (o *PluginCtx) CreatePlugins(plugins []string, initJson [][]byte) error {
	/* nothing to do */
	if len(plugins) == 0 {
		return nil
	}

	var errstrings []string
	initlen := len(initJson)
	for i, pl := range plugins {
		var initobj []byte
		if i < initlen {
			initobj = initJson[i]
		}
		if err := o.addPlugin(pl, initobj); err != nil {
			errstrings = append(errstrings, err.Error())
		}
	}
	if len(errstrings) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(errstrings, "\n"))
}

func (o *PluginCtx) OnRemove() {

	/* free all plugins, sorted so the order does not depend on the map */
	names := make([]string, 0, len(o.mapPlugins))
	for k := range o.mapPlugins {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		o.RemovePlugins(k)
	}

	/* clean the event bus */
	for k := range o.eventBus {
		delete(o.eventBus, k)
	}
}

// addPlugin add one plugin to PluginCtx
func (o *PluginCtx) addPlugin(pl string, initJson []byte) error {

	p, ok := pluginregister.M[pl]
	if !ok {
		return fmt.Errorf("plugins-add %s does not exits ", pl)
	}

	if _, ok = o.mapPlugins[pl]; ok {
		return fmt.Errorf("plugins-add %s already exits ", pl)
	}

	nobj, err := p.NewPlugin(o, initJson)
	if err != nil {
		return fmt.Errorf("plugins-add %s: %w", pl, err)
	}

	o.mapPlugins[pl] = nobj
	return nil
}

// AddPlugin add one plugin with its init json
func (o *PluginCtx) AddPlugin(pl string, initJson []byte) error {
	return o.addPlugin(pl, initJson)
}

// RemovePlugins remove plugin
func (o *PluginCtx) RemovePlugins(pl string) error {
	obj, ok := o.mapPlugins[pl]
	if !ok {
		return fmt.Errorf("plugins-remove %s does not exits ", pl)
	}
	obj.I.OnRemove(o)
	delete(o.mapPlugins, pl)
	return nil
}

// GetOrCreate if it wasn't created with a json, try to create a default with nil JSON data
func (o *PluginCtx) GetOrCreate(pl string) *PluginBase {
	obj, ok := o.mapPlugins[pl]
	if !ok {
		if err := o.addPlugin(pl, nil); err != nil {
			panic("GetOrCreate " + err.Error())
		}
		obj = o.Get(pl)
	}

	if obj == nil {
		panic("GetOrCreate return nil ")
	}
	return obj
}

// Get return the dynamic pointer to a plugin
func (o *PluginCtx) Get(pl string) *PluginBase {
	return o.mapPlugins[pl]
}

// BroadcastMsg send the event for all the plugins registers , skip this plugin provided in this (if not nil)
func (o *PluginCtx) BroadcastMsg(ov *PluginBase, msg string, a, b interface{}) {
	o.eventBus.BroadcastMsg(ov, msg, a, b)
}

/*RegisterEvents  register events, should be called in create callback */
func (o *PluginCtx) RegisterEvents(ov *PluginBase, events []string) {
	for _, obj := range events {
		o.eventBus.Add(obj, ov)
	}
}

/*UnregisterEvents  unregister events, should be called OnRemove */
func (o *PluginCtx) UnregisterEvents(ov *PluginBase, events []string) {
	for _, obj := range events {
		o.eventBus.Remove(obj, ov)
	}
}

// Subscribe register a listener that is not a plugin, return the handle for Unsubscribe
func (o *PluginCtx) Subscribe(events []string, l EventListener) *PluginBase {
	b := &PluginBase{Node: o.Node, I: l}
	o.RegisterEvents(b, events)
	return b
}

///////////////////////////////////////////////////

type pluginRegister struct {
	M map[string]IPluginRegister
}

/* read only map, init */
var pluginregister = pluginRegister{M: make(map[string]IPluginRegister)}

// PluginRegister register a plugin, should be called from init()
func PluginRegister(pi string, pr IPluginRegister) {
	_, ok := pluginregister.M[pi]
	if ok {
		s := fmt.Sprintf(" can't register the same plugin twice %s ", pi)
		panic(s)
	}
	pluginregister.M[pi] = pr
}
