// Copyright (c) 2020 Cisco Systems and/or its affiliates.
// Licensed under the Apache License, Version 2.0 (the "License");
// that can be found in the LICENSE file in the root of the source
// tree.

package core

import (
	"encoding/json"
	"fmt"
)

/* CCounter Type */
const ScINFO = 0x12
const ScWARNING = 0x13
const ScERROR = 0x14

type cCounterVal struct {
	Counter interface{} `json:"cnt"`
}

// CCounterRec one counter, Counter should be a pointer to uint32/uint64/float64
type CCounterRec struct {
	Counter  interface{} `json:"-"`
	Name     string      `json:"name"`
	Help     string      `json:"help"`
	Unit     string      `json:"unit"`
	DumpZero bool        `json:"zero"`
	Info     uint8       `json:"info"` // see scINFO,scWARNING,scERROR
}

func (o *CCounterRec) IsValid() bool {
	return o.DumpZero || !o.IsZero()
}

func (o *CCounterRec) MarshalValue() []byte {
	res, _ := json.Marshal(&cCounterVal{Counter: o.Counter})
	return res
}

func (o *CCounterRec) IsZero() bool {
	switch v := o.Counter.(type) {
	case *uint32:
		return *v == 0
	case *uint64:
		return *v == 0
	case *float64:
		return *v == 0.0
	default:
		return true
	}
}

// Value return the counter as uint64, floats are truncated
func (o *CCounterRec) Value() uint64 {
	switch v := o.Counter.(type) {
	case *uint32:
		return uint64(*v)
	case *uint64:
		return *v
	case *float64:
		return uint64(*v)
	default:
		return 0
	}
}

func (o *CCounterRec) GetValAsString() string {
	switch v := o.Counter.(type) {
	case *uint32:
		return fmt.Sprintf("%v", *v)
	case *uint64:
		return fmt.Sprintf("%v", *v)
	case *float64:
		return fmt.Sprintf("%v", *v)
	default:
		return "N/A"
	}
}

func (o *CCounterRec) ClearValue() {
	switch v := o.Counter.(type) {
	case *uint32:
		*v = 0
	case *uint64:
		*v = 0
	case *float64:
		*v = 0.0
	}
}

func (o *CCounterRec) Dump() {
	if !o.IsZero() {
		fmt.Printf("%-30s : %10s \n", o.Name, o.GetValAsString())
	}
}

//CCounterOp operation on the counter, called before reading
type CCounterOp interface {
	PreUpdate()
}

type CCounterDb struct {
	Name string         `json:"name"`
	Vec  []*CCounterRec `json:"meta"`
	IOpt CCounterOp     `json:"-"`
	keys map[string]*CCounterRec
}

func NewCCounterDb(name string) *CCounterDb {
	return &CCounterDb{
		Name: name,
		Vec:  []*CCounterRec{},
		keys: make(map[string]*CCounterRec),
	}
}

func (o *CCounterDb) Add(cnt *CCounterRec) {
	if _, ok := o.keys[cnt.Name]; ok {
		panic(fmt.Sprintf(" same counter is added twice %s/%s", o.Name, cnt.Name))
	}
	o.keys[cnt.Name] = cnt
	o.Vec = append(o.Vec, cnt)
}

func (o *CCounterDb) Preupdate() {
	if o.IOpt != nil {
		o.IOpt.PreUpdate()
	}
}

// Get return the counter record by name
func (o *CCounterDb) Get(name string) *CCounterRec {
	return o.keys[name]
}

// Val return the value of a counter by name, zero if it does not exist
func (o *CCounterDb) Val(name string) uint64 {
	o.Preupdate()
	if r, ok := o.keys[name]; ok {
		return r.Value()
	}
	return 0
}

func (o *CCounterDb) Dump() {
	o.Preupdate()
	fmt.Println(" counters " + o.Name)
	for _, obj := range o.Vec {
		obj.Dump()
	}
}

func (o *CCounterDb) MarshalValues(zero bool) map[string]interface{} {
	m := make(map[string]interface{})
	o.Preupdate()
	for _, obj := range o.Vec {
		if zero || obj.IsValid() {
			m[obj.Name] = obj.Counter
		}
	}
	return m
}

// Snapshot return a copy of all the non zero values
func (o *CCounterDb) Snapshot() map[string]uint64 {
	m := make(map[string]uint64)
	o.Preupdate()
	for _, obj := range o.Vec {
		if !obj.IsZero() {
			m[obj.Name] = obj.Value()
		}
	}
	return m
}

func (o *CCounterDb) ClearValues() {
	o.Preupdate()
	for _, obj := range o.Vec {
		obj.ClearValue()
	}
}

func (o *CCounterDb) MarshalMeta() []byte {
	res, _ := json.Marshal(o)
	return res
}

type CCounterDbVec struct {
	Name      string        `json:"name"`
	Vec       []*CCounterDb `json:"vec"`
	validator map[string]int
}

func NewCCounterDbVec(name string) *CCounterDbVec {
	return &CCounterDbVec{Name: name,
		Vec:       []*CCounterDb{},
		validator: make(map[string]int)}
}

func (o *CCounterDbVec) Add(cnt *CCounterDb) {
	if _, ok := o.validator[cnt.Name]; ok {
		panic(fmt.Sprintf(" same key is added twice %s", cnt.Name))
	}
	o.validator[cnt.Name] = 1
	o.Vec = append(o.Vec, cnt)
}

func (o *CCounterDbVec) AddVec(cnt *CCounterDbVec) {
	for _, vec := range cnt.Vec {
		o.Add(vec)
	}
}

func (o *CCounterDbVec) ClearValues() {
	for _, obj := range o.Vec {
		obj.ClearValues()
	}
}

func (o *CCounterDbVec) Dump() {
	fmt.Println(" counters " + o.Name + " dbvec")
	for _, obj := range o.Vec {
		obj.Dump()
	}
	fmt.Println(" ===")
}

func (o *CCounterDbVec) MarshalValues(zero bool) map[string]interface{} {
	m := make(map[string]interface{})
	for _, obj := range o.Vec {
		r := obj.MarshalValues(zero)
		if len(r) > 0 {
			m[obj.Name] = r
		}
	}
	return m
}

// MarshalIndent the values as a stable (sorted) json text, used for golden compare
func (o *CCounterDbVec) MarshalIndent(zero bool) string {
	// encoding/json sorts map keys, so the output is deterministic
	res, _ := json.MarshalIndent(o.MarshalValues(zero), "", "  ")
	return string(res)
}

func (o *CCounterDbVec) MarshalMeta() map[string]interface{} {
	m := make(map[string]interface{})
	for _, obj := range o.Vec {
		m[obj.Name] = obj
	}
	return m
}
