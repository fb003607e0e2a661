package ipv6

import (
	"fmt"
	"net/netip"
	"time"

	"ndsim/emu/core"

	"github.com/xeipuuv/gojsonschema"
)

const (
	DefaultAdvValidLifetime     = 2592000 // sec
	DefaultAdvPreferredLifetime = 604800
)

type QueuePolicy uint8

const (
	QUEUE_DROP_OLDEST QueuePolicy = 1
	QUEUE_REJECT_NEW  QueuePolicy = 2
)

type BackoffPolicy uint8

const (
	BACKOFF_FIXED       BackoffPolicy = 1
	BACKOFF_EXPONENTIAL BackoffPolicy = 2
)

type PrefixPolicy uint8

const (
	PREFIX_POLICY_SLAAC       PrefixPolicy = 1 // on-link prefixes and address autoconfiguration
	PREFIX_POLICY_CONSISTENCY PrefixPolicy = 2 // on-link prefixes and consistency check with the advertised prefixes
)

// AdvPrefixJson one prefix a router advertises
type AdvPrefixJson struct {
	Prefix               string  `json:"prefix" validate:"required,cidrv6"`
	Interface            string  `json:"if"` // empty for all the interfaces
	OnLink               bool    `json:"on_link"`
	Autonomous           bool    `json:"autonomous"`
	ValidLifetimeSec     *uint32 `json:"valid_lifetime_sec"`     // 30 days when missing
	PreferredLifetimeSec *uint32 `json:"preferred_lifetime_sec"` // 7 days when missing
}

// NdInitJson the init json of the ipv6 plugin, times are in ms unless written otherwise
type NdInitJson struct {
	MaxMulticastSolicit    uint32 `json:"max_multicast_solicit" validate:"gte=1,lte=255"`
	MaxUnicastSolicit      uint32 `json:"max_unicast_solicit" validate:"gte=1,lte=255"`
	RetransTimerMs         uint32 `json:"retrans_timer_ms" validate:"gte=1"`
	DelayFirstProbeMs      uint32 `json:"delay_first_probe_ms" validate:"gte=1"`
	BaseReachableMs        uint32 `json:"base_reachable_ms" validate:"gte=1"`
	RandomizeReachable     bool   `json:"randomize_reachable"`
	DupAddrDetectTransmits uint32 `json:"dup_addr_detect_transmits" validate:"lte=16"`

	MaxRtrSolicitations       uint32 `json:"max_rtr_solicitations" validate:"lte=64"`
	RtrSolicitationIntervalMs uint32 `json:"rtr_solicitation_interval_ms" validate:"gte=1"`
	RtrSolicitationBackoff    string `json:"rtr_solicitation_backoff" validate:"oneof=fixed exponential"`
	RtrSolicitationJitterMs   uint32 `json:"rtr_solicitation_jitter_ms"`

	AdvSendAdvertisements         bool            `json:"adv_send_advertisements"`
	MinRtrAdvIntervalMs           uint32          `json:"min_rtr_adv_interval_ms" validate:"gte=1"`
	MaxRtrAdvIntervalMs           uint32          `json:"max_rtr_adv_interval_ms" validate:"gtefield=MinRtrAdvIntervalMs"`
	InitialRtrAdvertJitterMs      uint32          `json:"initial_rtr_advert_jitter_ms"`
	MaxInitialRtrAdvertIntervalMs uint32          `json:"max_initial_rtr_advert_interval_ms" validate:"gte=1"`
	MaxInitialRtrAdvertisements   uint32          `json:"max_initial_rtr_advertisements"`
	MinDelayBetweenRAsMs          uint32          `json:"min_delay_between_ras_ms"`
	AdvDefaultLifetimeSec         uint32          `json:"adv_default_lifetime_sec" validate:"lte=9000"`
	AdvCurHopLimit                uint8           `json:"adv_cur_hop_limit"`
	AdvManaged                    bool            `json:"adv_managed"`
	AdvOther                      bool            `json:"adv_other"`
	AdvReachableTimeMs            uint32          `json:"adv_reachable_time_ms" validate:"lte=3600000"`
	AdvRetransTimerMs             uint32          `json:"adv_retrans_timer_ms"`
	AdvLinkMtu                    uint32          `json:"adv_link_mtu" validate:"eq=0|gte=1280"`
	AdvPrefixes                   []AdvPrefixJson `json:"adv_prefixes" validate:"dive"`
	SendFinalRA                   bool            `json:"send_final_ra"`

	PendingQueueLimit  uint32 `json:"pending_queue_limit" validate:"gte=1,lte=1024"`
	PendingQueuePolicy string `json:"pending_queue_policy" validate:"oneof=drop-oldest reject-new"`
	Autoconf           bool   `json:"autoconf"`
	AssumeOnLink       bool   `json:"assume_on_link"`
	PrefixPolicy       string `json:"prefix_policy" validate:"omitempty,oneof=slaac consistency"`
}

// DefaultNdInitJson RFC 4861 host and router constants
func DefaultNdInitJson() NdInitJson {
	return NdInitJson{
		MaxMulticastSolicit:    3,
		MaxUnicastSolicit:      3,
		RetransTimerMs:         1000,
		DelayFirstProbeMs:      5000,
		BaseReachableMs:        30000,
		DupAddrDetectTransmits: 1,

		MaxRtrSolicitations:       3,
		RtrSolicitationIntervalMs: 4000,
		RtrSolicitationBackoff:    "fixed",
		RtrSolicitationJitterMs:   1000,

		AdvSendAdvertisements:         true,
		MinRtrAdvIntervalMs:           198000,
		MaxRtrAdvIntervalMs:           600000,
		InitialRtrAdvertJitterMs:      500,
		MaxInitialRtrAdvertIntervalMs: 16000,
		MaxInitialRtrAdvertisements:   3,
		MinDelayBetweenRAsMs:          3000,
		AdvDefaultLifetimeSec:         1800,
		AdvCurHopLimit:                64,
		SendFinalRA:                   true,

		PendingQueueLimit:  3,
		PendingQueuePolicy: "drop-oldest",
		Autoconf:           true,
		AssumeOnLink:       true,
	}
}

const ndSchema string = `{
    "title": "ipv6 nd",
    "description": "ipv6 neighbor discovery init json",
    "type": "object",
    "additionalProperties": false,
    "properties": {
        "max_multicast_solicit": { "type": "integer", "minimum": 1 },
        "max_unicast_solicit": { "type": "integer", "minimum": 1 },
        "retrans_timer_ms": { "type": "integer", "minimum": 1 },
        "delay_first_probe_ms": { "type": "integer", "minimum": 1 },
        "base_reachable_ms": { "type": "integer", "minimum": 1 },
        "randomize_reachable": { "type": "boolean" },
        "dup_addr_detect_transmits": { "type": "integer", "minimum": 0 },
        "max_rtr_solicitations": { "type": "integer", "minimum": 0 },
        "rtr_solicitation_interval_ms": { "type": "integer", "minimum": 1 },
        "rtr_solicitation_backoff": { "enum": ["fixed", "exponential"] },
        "rtr_solicitation_jitter_ms": { "type": "integer", "minimum": 0 },
        "adv_send_advertisements": { "type": "boolean" },
        "min_rtr_adv_interval_ms": { "type": "integer", "minimum": 1 },
        "max_rtr_adv_interval_ms": { "type": "integer", "minimum": 1 },
        "initial_rtr_advert_jitter_ms": { "type": "integer", "minimum": 0 },
        "max_initial_rtr_advert_interval_ms": { "type": "integer", "minimum": 1 },
        "max_initial_rtr_advertisements": { "type": "integer", "minimum": 0 },
        "min_delay_between_ras_ms": { "type": "integer", "minimum": 0 },
        "adv_default_lifetime_sec": { "type": "integer", "minimum": 0 },
        "adv_cur_hop_limit": { "type": "integer", "minimum": 0, "maximum": 255 },
        "adv_managed": { "type": "boolean" },
        "adv_other": { "type": "boolean" },
        "adv_reachable_time_ms": { "type": "integer", "minimum": 0 },
        "adv_retrans_timer_ms": { "type": "integer", "minimum": 0 },
        "adv_link_mtu": { "type": "integer", "minimum": 0 },
        "adv_prefixes": {
            "type": "array",
            "items": {
                "type": "object",
                "required": ["prefix"],
                "additionalProperties": false,
                "properties": {
                    "prefix": { "type": "string" },
                    "if": { "type": "string" },
                    "on_link": { "type": "boolean" },
                    "autonomous": { "type": "boolean" },
                    "valid_lifetime_sec": { "type": "integer", "minimum": 0 },
                    "preferred_lifetime_sec": { "type": "integer", "minimum": 0 }
                }
            }
        },
        "send_final_ra": { "type": "boolean" },
        "pending_queue_limit": { "type": "integer", "minimum": 1 },
        "pending_queue_policy": { "enum": ["drop-oldest", "reject-new"] },
        "autoconf": { "type": "boolean" },
        "assume_on_link": { "type": "boolean" },
        "prefix_policy": { "enum": ["slaac", "consistency"] }
    }
}`

var ndSchemaLoader gojsonschema.JSONLoader = nil

// IsValidNdJson check the init json against the schema
func IsValidNdJson(data []byte) error {
	if ndSchemaLoader == nil {
		ndSchemaLoader = gojsonschema.NewStringLoader(ndSchema)
	}
	documentLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(ndSchemaLoader, documentLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		s := ""
		for _, desc := range result.Errors() {
			s += fmt.Sprintf("- %s\n", desc)
		}
		return fmt.Errorf("%s", s)
	}
	return nil
}

// AdvPrefix a prefix a router advertises
type AdvPrefix struct {
	Info      PrefixInformation
	Interface string
}

// NdConfig the runtime configuration of the engine
type NdConfig struct {
	MaxMulticastSolicit    uint32
	MaxUnicastSolicit      uint32
	RetransTimer           time.Duration
	DelayFirstProbeTime    time.Duration
	BaseReachableTime      time.Duration
	RandomizeReachable     bool
	DupAddrDetectTransmits uint32

	MaxRtrSolicitations     uint32
	RtrSolicitationInterval time.Duration
	RtrSolicitationBackoff  BackoffPolicy
	RtrSolicitationJitter   time.Duration

	AdvSendAdvertisements       bool
	MinRtrAdvInterval           time.Duration
	MaxRtrAdvInterval           time.Duration
	InitialRtrAdvertJitter      time.Duration
	MaxInitialRtrAdvertInterval time.Duration
	MaxInitialRtrAdvertisements uint32
	MinDelayBetweenRAs          time.Duration
	AdvDefaultLifetime          time.Duration
	AdvCurHopLimit              uint8
	AdvManaged                  bool
	AdvOther                    bool
	AdvReachableTime            time.Duration
	AdvRetransTimer             time.Duration
	AdvLinkMtu                  uint32
	AdvPrefixes                 []AdvPrefix
	SendFinalRA                 bool

	PendingQueueLimit  uint32
	PendingQueuePolicy QueuePolicy
	Autoconf           bool
	AssumeOnLink       bool
	PrefixPolicy       PrefixPolicy
}

func ms(v uint32) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// NewNdConfig convert the json form, the json should be validated
func NewNdConfig(j *NdInitJson, isRouter bool) (*NdConfig, error) {
	o := &NdConfig{
		MaxMulticastSolicit:    j.MaxMulticastSolicit,
		MaxUnicastSolicit:      j.MaxUnicastSolicit,
		RetransTimer:           ms(j.RetransTimerMs),
		DelayFirstProbeTime:    ms(j.DelayFirstProbeMs),
		BaseReachableTime:      ms(j.BaseReachableMs),
		RandomizeReachable:     j.RandomizeReachable,
		DupAddrDetectTransmits: j.DupAddrDetectTransmits,

		MaxRtrSolicitations:     j.MaxRtrSolicitations,
		RtrSolicitationInterval: ms(j.RtrSolicitationIntervalMs),
		RtrSolicitationBackoff:  BACKOFF_FIXED,
		RtrSolicitationJitter:   ms(j.RtrSolicitationJitterMs),

		AdvSendAdvertisements:       j.AdvSendAdvertisements,
		MinRtrAdvInterval:           ms(j.MinRtrAdvIntervalMs),
		MaxRtrAdvInterval:           ms(j.MaxRtrAdvIntervalMs),
		InitialRtrAdvertJitter:      ms(j.InitialRtrAdvertJitterMs),
		MaxInitialRtrAdvertInterval: ms(j.MaxInitialRtrAdvertIntervalMs),
		MaxInitialRtrAdvertisements: j.MaxInitialRtrAdvertisements,
		MinDelayBetweenRAs:          ms(j.MinDelayBetweenRAsMs),
		AdvDefaultLifetime:          time.Duration(j.AdvDefaultLifetimeSec) * time.Second,
		AdvCurHopLimit:              j.AdvCurHopLimit,
		AdvManaged:                  j.AdvManaged,
		AdvOther:                    j.AdvOther,
		AdvReachableTime:            ms(j.AdvReachableTimeMs),
		AdvRetransTimer:             ms(j.AdvRetransTimerMs),
		AdvLinkMtu:                  j.AdvLinkMtu,
		SendFinalRA:                 j.SendFinalRA,

		PendingQueueLimit:  j.PendingQueueLimit,
		PendingQueuePolicy: QUEUE_DROP_OLDEST,
		Autoconf:           j.Autoconf,
		AssumeOnLink:       j.AssumeOnLink,
		PrefixPolicy:       PREFIX_POLICY_SLAAC,
	}
	if j.RtrSolicitationBackoff == "exponential" {
		o.RtrSolicitationBackoff = BACKOFF_EXPONENTIAL
	}
	if j.PendingQueuePolicy == "reject-new" {
		o.PendingQueuePolicy = QUEUE_REJECT_NEW
	}
	switch j.PrefixPolicy {
	case "consistency":
		o.PrefixPolicy = PREFIX_POLICY_CONSISTENCY
	case "":
		if isRouter {
			o.PrefixPolicy = PREFIX_POLICY_CONSISTENCY
		}
	}
	for _, p := range j.AdvPrefixes {
		prefix, err := netip.ParsePrefix(p.Prefix)
		if err != nil {
			return nil, err
		}
		valid, preferred := uint32(DefaultAdvValidLifetime), uint32(DefaultAdvPreferredLifetime)
		if p.ValidLifetimeSec != nil {
			valid = *p.ValidLifetimeSec
		}
		if p.PreferredLifetimeSec != nil {
			preferred = *p.PreferredLifetimeSec
		}
		if preferred > valid {
			return nil, fmt.Errorf("prefix %s: preferred lifetime %d above valid lifetime %d", p.Prefix, preferred, valid)
		}
		o.AdvPrefixes = append(o.AdvPrefixes, AdvPrefix{
			Info: PrefixInformation{
				Prefix:            prefix.Masked(),
				OnLink:            p.OnLink,
				Autonomous:        p.Autonomous,
				ValidLifetime:     valid,
				PreferredLifetime: preferred,
			},
			Interface: p.Interface,
		})
	}
	return o, nil
}

// ParseNdConfig schema check, decode over the defaults and validate. nil data gives the defaults
func ParseNdConfig(sim *core.CSimCtx, data []byte, isRouter bool) (*NdConfig, error) {
	j := DefaultNdInitJson()
	if len(data) > 0 {
		if err := IsValidNdJson(data); err != nil {
			return nil, fmt.Errorf("nd init json: %w", err)
		}
		if err := sim.UnmarshalValidate(data, &j); err != nil {
			return nil, fmt.Errorf("nd init json: %w", err)
		}
	} else if err := sim.Validate(&j); err != nil {
		return nil, err
	}
	return NewNdConfig(&j, isRouter)
}
