package ipv6

import (
	"net/netip"
	"testing"
	"time"

	"ndsim/emu/core"

	"github.com/google/go-cmp/cmp"
)

func TestNdConfigDefaults(t *testing.T) {
	sim := core.NewSimCtx(testTick, 1)
	host, err := ParseNdConfig(sim, nil, false)
	if err != nil {
		t.Fatalf("defaults %v", err)
	}
	want := &NdConfig{
		MaxMulticastSolicit:    3,
		MaxUnicastSolicit:      3,
		RetransTimer:           time.Second,
		DelayFirstProbeTime:    5 * time.Second,
		BaseReachableTime:      30 * time.Second,
		DupAddrDetectTransmits: 1,

		MaxRtrSolicitations:     3,
		RtrSolicitationInterval: 4 * time.Second,
		RtrSolicitationBackoff:  BACKOFF_FIXED,
		RtrSolicitationJitter:   time.Second,

		AdvSendAdvertisements:       true,
		MinRtrAdvInterval:           198 * time.Second,
		MaxRtrAdvInterval:           600 * time.Second,
		InitialRtrAdvertJitter:      500 * time.Millisecond,
		MaxInitialRtrAdvertInterval: 16 * time.Second,
		MaxInitialRtrAdvertisements: 3,
		MinDelayBetweenRAs:          3 * time.Second,
		AdvDefaultLifetime:          1800 * time.Second,
		AdvCurHopLimit:              64,
		SendFinalRA:                 true,

		PendingQueueLimit:  3,
		PendingQueuePolicy: QUEUE_DROP_OLDEST,
		Autoconf:           true,
		AssumeOnLink:       true,
		PrefixPolicy:       PREFIX_POLICY_SLAAC,
	}
	if diff := cmp.Diff(want, host, addrCmp); diff != "" {
		t.Fatalf("host defaults (-want +got):\n%s", diff)
	}

	router, err := ParseNdConfig(sim, nil, true)
	if err != nil {
		t.Fatalf("defaults %v", err)
	}
	if router.PrefixPolicy != PREFIX_POLICY_CONSISTENCY {
		t.Fatalf("router prefix policy %v", router.PrefixPolicy)
	}
}

func TestNdConfigParse(t *testing.T) {
	sim := core.NewSimCtx(testTick, 1)
	cfg, err := ParseNdConfig(sim, []byte(`{
		"retrans_timer_ms": 500,
		"rtr_solicitation_backoff": "exponential",
		"pending_queue_policy": "reject-new",
		"prefix_policy": "slaac",
		"adv_prefixes": [{"prefix": "2001:db8:1::7/64", "if": "eth1", "on_link": true,
		                  "valid_lifetime_sec": 600, "preferred_lifetime_sec": 300}]
	}`), true)
	if err != nil {
		t.Fatalf("parse %v", err)
	}
	if cfg.RetransTimer != 500*time.Millisecond || cfg.RtrSolicitationBackoff != BACKOFF_EXPONENTIAL ||
		cfg.PendingQueuePolicy != QUEUE_REJECT_NEW || cfg.PrefixPolicy != PREFIX_POLICY_SLAAC {
		t.Fatalf("config %+v", cfg)
	}
	want := []AdvPrefix{{
		Info: PrefixInformation{
			Prefix:            netip.MustParsePrefix("2001:db8:1::/64"),
			OnLink:            true,
			ValidLifetime:     600,
			PreferredLifetime: 300,
		},
		Interface: "eth1",
	}}
	if diff := cmp.Diff(want, cfg.AdvPrefixes, addrCmp); diff != "" {
		t.Fatalf("prefixes (-want +got):\n%s", diff)
	}
}

func TestNdConfigErrors(t *testing.T) {
	sim := core.NewSimCtx(testTick, 1)
	var tests = []struct {
		name string
		data string
	}{
		{"unknown key", `{"retrans_timer": 100}`},
		{"wrong type", `{"retrans_timer_ms": "100"}`},
		{"zero retrans", `{"retrans_timer_ms": 0}`},
		{"bad backoff", `{"rtr_solicitation_backoff": "linear"}`},
		{"bad policy", `{"pending_queue_policy": "drop-newest"}`},
		{"interval order", `{"min_rtr_adv_interval_ms": 5000, "max_rtr_adv_interval_ms": 4000}`},
		{"small mtu", `{"adv_link_mtu": 1000}`},
		{"bad prefix", `{"adv_prefixes": [{"prefix": "10.0.0.0/8"}]}`},
		{"preferred above valid", `{"adv_prefixes": [{"prefix": "2001:db8::/64", "valid_lifetime_sec": 10, "preferred_lifetime_sec": 20}]}`},
		{"not json", `{"retrans_timer_ms": `},
	}
	for _, tc := range tests {
		if _, err := ParseNdConfig(sim, []byte(tc.data), false); err == nil {
			t.Fatalf("%s: expected an error", tc.name)
		}
	}
}
