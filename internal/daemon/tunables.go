package daemon

import (
	"strconv"
	"strings"

	isterrors "github.com/grimm-is/istgtd/internal/errors"
	"github.com/grimm-is/istgtd/internal/section"
)

// Default sentinels for spec §4.6's tunable table.
const (
	DefaultMaxSessions              = 16
	DefaultMaxConnections           = 4
	DefaultMaxOutstandingR2T        = 16
	DefaultTime2Wait                = 2
	DefaultTime2Retain              = 20
	DefaultFirstBurstLength         = 65536
	DefaultMaxBurstLength           = 262144
	DefaultMaxRecvDataSegmentLength = 262144
	DefaultErrorRecoveryLevel       = 0
	DefaultTimeout                  = 30
	DefaultNopInInterval            = 20
	DefaultMaxR2T                   = 16
	MaxR2TCeiling                   = 255
)

// Tunables holds the daemon-wide negotiation defaults and limits read
// from the Global section at init and on every reload (spec §4.6). A
// reload that fails validation leaves the previous Tunables in place —
// callers must keep the old value around until Validate succeeds.
type Tunables struct {
	MaxSessions              int
	MaxConnections           int
	MaxOutstandingR2T        int
	DefaultTime2Wait         int
	DefaultTime2Retain       int
	FirstBurstLength         int
	MaxBurstLength           int
	MaxRecvDataSegmentLength int
	InitialR2T               string
	ImmediateData            string
	DataPDUInOrder           string
	DataSequenceInOrder      string
	ErrorRecoveryLevel       int
	Timeout                  int
	NopInInterval            int
	MaxR2T                   int
	DiscoveryAuthMethod      []string
	DiscoveryAuthGroup       string
}

func intOr(sec section.Section, key string, def int) (int, error) {
	v, ok := sec.NVal(key, 0)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, isterrors.Wrapf(err, isterrors.KindConfigInvalid, "Global.%s: not an integer", key)
	}
	return n, nil
}

func strOr(sec section.Section, key, def string) string {
	if v, ok := sec.NVal(key, 0); ok {
		return v
	}
	return def
}

// LoadTunables reads the Global section, applying defaults per spec §4.6.
// It does not validate — call Validate afterward (spec requires init and
// every reload to validate before the result is adopted).
func LoadTunables(sec section.Section) (Tunables, error) {
	var t Tunables
	var err error

	if t.MaxSessions, err = intOr(sec, "MaxSessions", DefaultMaxSessions); err != nil {
		return t, err
	}
	if t.MaxConnections, err = intOr(sec, "MaxConnections", DefaultMaxConnections); err != nil {
		return t, err
	}
	if t.MaxOutstandingR2T, err = intOr(sec, "MaxOutstandingR2T", DefaultMaxOutstandingR2T); err != nil {
		return t, err
	}
	if t.DefaultTime2Wait, err = intOr(sec, "DefaultTime2Wait", DefaultTime2Wait); err != nil {
		return t, err
	}
	if t.DefaultTime2Retain, err = intOr(sec, "DefaultTime2Retain", DefaultTime2Retain); err != nil {
		return t, err
	}
	if t.MaxBurstLength, err = intOr(sec, "MaxBurstLength", DefaultMaxBurstLength); err != nil {
		return t, err
	}
	if t.FirstBurstLength, err = intOr(sec, "FirstBurstLength", DefaultFirstBurstLength); err != nil {
		return t, err
	}
	if t.MaxRecvDataSegmentLength, err = intOr(sec, "MaxRecvDataSegmentLength", DefaultMaxRecvDataSegmentLength); err != nil {
		return t, err
	}
	if t.ErrorRecoveryLevel, err = intOr(sec, "ErrorRecoveryLevel", DefaultErrorRecoveryLevel); err != nil {
		return t, err
	}
	if t.Timeout, err = intOr(sec, "Timeout", DefaultTimeout); err != nil {
		return t, err
	}
	if t.NopInInterval, err = intOr(sec, "NopInInterval", DefaultNopInInterval); err != nil {
		return t, err
	}
	if t.MaxR2T, err = intOr(sec, "MaxR2T", DefaultMaxR2T); err != nil {
		return t, err
	}

	t.InitialR2T = strOr(sec, "InitialR2T", "Yes")
	t.ImmediateData = strOr(sec, "ImmediateData", "Yes")
	t.DataPDUInOrder = strOr(sec, "DataPDUInOrder", "Yes")
	t.DataSequenceInOrder = strOr(sec, "DataSequenceInOrder", "Yes")
	t.DiscoveryAuthGroup = strOr(sec, "DiscoveryAuthGroup", "None")

	method := strOr(sec, "DiscoveryAuthMethod", "Auto")
	for _, m := range strings.Fields(method) {
		t.DiscoveryAuthMethod = append(t.DiscoveryAuthMethod, strings.TrimSuffix(m, ","))
	}

	return t, nil
}

// Validate enforces spec §4.6's range table. Any out-of-range value is
// fatal at init and rejects a reload outright (the caller keeps running
// on the prior Tunables).
func (t Tunables) Validate() error {
	inRange := func(name string, v, lo, hi int) error {
		if v < lo || v > hi {
			return isterrors.Errorf(isterrors.KindConfigInvalid, "Global.%s=%d out of range [%d,%d]", name, v, lo, hi)
		}
		return nil
	}

	if err := inRange("MaxSessions", t.MaxSessions, 1, 65535); err != nil {
		return err
	}
	if err := inRange("MaxConnections", t.MaxConnections, 1, 65535); err != nil {
		return err
	}
	if err := inRange("MaxOutstandingR2T", t.MaxOutstandingR2T, 1, 65535); err != nil {
		return err
	}
	if err := inRange("DefaultTime2Wait", t.DefaultTime2Wait, 0, 3600); err != nil {
		return err
	}
	if err := inRange("DefaultTime2Retain", t.DefaultTime2Retain, 0, 3600); err != nil {
		return err
	}
	if err := inRange("MaxBurstLength", t.MaxBurstLength, 512, 0x00FFFFFF); err != nil {
		return err
	}
	if err := inRange("FirstBurstLength", t.FirstBurstLength, 512, t.MaxBurstLength); err != nil {
		return err
	}
	if err := inRange("MaxRecvDataSegmentLength", t.MaxRecvDataSegmentLength, 512, 0x00FFFFFF); err != nil {
		return err
	}
	if t.InitialR2T != "Yes" {
		return isterrors.Errorf(isterrors.KindConfigInvalid, "Global.InitialR2T must be Yes, got %q", t.InitialR2T)
	}
	if t.ImmediateData != "Yes" && t.ImmediateData != "No" {
		return isterrors.Errorf(isterrors.KindConfigInvalid, "Global.ImmediateData must be Yes/No, got %q", t.ImmediateData)
	}
	if t.DataPDUInOrder != "Yes" {
		return isterrors.Errorf(isterrors.KindConfigInvalid, "Global.DataPDUInOrder must be Yes, got %q", t.DataPDUInOrder)
	}
	if t.DataSequenceInOrder != "Yes" {
		return isterrors.Errorf(isterrors.KindConfigInvalid, "Global.DataSequenceInOrder must be Yes, got %q", t.DataSequenceInOrder)
	}
	if t.ErrorRecoveryLevel != 0 {
		return isterrors.Errorf(isterrors.KindConfigInvalid, "Global.ErrorRecoveryLevel must be 0, got %d", t.ErrorRecoveryLevel)
	}
	if t.Timeout < 0 {
		return isterrors.Errorf(isterrors.KindConfigInvalid, "Global.Timeout must be >= 0, got %d", t.Timeout)
	}
	if t.NopInInterval < 0 {
		return isterrors.Errorf(isterrors.KindConfigInvalid, "Global.NopInInterval must be >= 0, got %d", t.NopInInterval)
	}
	if err := inRange("MaxR2T", t.MaxR2T, 0, MaxR2TCeiling); err != nil {
		return err
	}

	hasChap, hasMutual := false, false
	for _, m := range t.DiscoveryAuthMethod {
		switch m {
		case "CHAP":
			hasChap = true
		case "Mutual":
			hasMutual = true
		case "Auto", "None":
		default:
			return isterrors.Errorf(isterrors.KindConfigInvalid, "Global.DiscoveryAuthMethod: unknown method %q", m)
		}
	}
	if hasMutual && !hasChap {
		return isterrors.Errorf(isterrors.KindConfigInvalid, "Global.DiscoveryAuthMethod: Mutual requires CHAP")
	}

	if t.DiscoveryAuthGroup != "None" {
		if !strings.HasPrefix(t.DiscoveryAuthGroup, "AuthGroup") {
			return isterrors.Errorf(isterrors.KindConfigInvalid, "Global.DiscoveryAuthGroup must be None or AuthGroup<N>, got %q", t.DiscoveryAuthGroup)
		}
		n, err := strconv.Atoi(strings.TrimPrefix(t.DiscoveryAuthGroup, "AuthGroup"))
		if err != nil || n <= 0 {
			return isterrors.Errorf(isterrors.KindConfigInvalid, "Global.DiscoveryAuthGroup: N must be > 0, got %q", t.DiscoveryAuthGroup)
		}
	}

	return nil
}
