// Package config decodes the sectioned HCL configuration document into
// the section.Config/section.Section shape consumed by the core daemon
// packages (internal/portal, internal/igroup, internal/daemon).
package config

// Document is the top-level HCL schema. Each top-level section type named
// in spec §3 (Global, PortalGroup, InitiatorGroup, UnitControl,
// LogicalUnit, AuthGroup) maps to one HCL block type.
type Document struct {
	Global          *GlobalBlock          `hcl:"global,block"`
	PortalGroups    []PortalGroupBlock    `hcl:"portal_group,block"`
	InitiatorGroups []InitiatorGroupBlock `hcl:"initiator_group,block"`
	UnitControl     *UnitControlBlock     `hcl:"unit_control,block"`
	LogicalUnits    []LogicalUnitBlock    `hcl:"logical_unit,block"`
	AuthGroups      []AuthGroupBlock      `hcl:"auth_group,block"`
}

// PortalEntry is one "label endpoint" pair inside a portal_group or
// unit_control block, e.g. `portal "ag1" "10.0.0.1:3260"`.
type PortalEntry struct {
	Label    string `hcl:",label"`
	Endpoint string `hcl:",label"`
}

// PortalGroupBlock is a labeled `portal_group "<tag>" { ... }` block.
type PortalGroupBlock struct {
	Tag     string        `hcl:",label"`
	Portals []PortalEntry `hcl:"portal,block"`
}

// InitiatorGroupBlock is a labeled `initiator_group "<tag>" { ... }` block.
type InitiatorGroupBlock struct {
	Tag        string   `hcl:",label"`
	Initiators []string `hcl:"initiator_name,optional"`
	Netmasks   []string `hcl:"netmask,optional"`
}

// UnitControlBlock is the single unlabeled `unit_control { ... }` block.
type UnitControlBlock struct {
	Portals []PortalEntry `hcl:"portal,block"`
}

// LogicalUnitBlock is a labeled `logical_unit "<tag>" { ... }` block. The
// LU subsystem itself is an external collaborator (spec §1 non-goal); the
// control plane only needs to know the tag exists and which backing file
// and auth group it names, so LUs can be wired to sessions and to the
// lu.Manager stub.
type LogicalUnitBlock struct {
	Tag       string `hcl:",label"`
	Path      string `hcl:"path,optional"`
	Size      string `hcl:"size,optional"`
	AuthGroup string `hcl:"auth_group,optional"`
}

// AuthGroupBlock is a labeled `auth_group "<tag>" { ... }` block. CHAP
// itself is an external collaborator (spec §1 non-goal); only the
// secret/user bindings are parsed and handed off.
type AuthGroupBlock struct {
	Tag      string   `hcl:",label"`
	Users    []string `hcl:"chap_user,optional"`
	Secrets  []string `hcl:"chap_secret,optional"`
	Mutual   []string `hcl:"chap_mutual,optional"`
}

// GlobalBlock holds the daemon-wide tunables validated per spec §4.6.
type GlobalBlock struct {
	NodeBase                 string `hcl:"node_base,optional"`
	MaxSessions              *int   `hcl:"max_sessions,optional"`
	MaxConnections           *int   `hcl:"max_connections,optional"`
	MaxOutstandingR2T        *int   `hcl:"max_outstanding_r2t,optional"`
	DefaultTime2Wait         *int   `hcl:"default_time2wait,optional"`
	DefaultTime2Retain       *int   `hcl:"default_time2retain,optional"`
	FirstBurstLength         *int   `hcl:"first_burst_length,optional"`
	MaxBurstLength           *int   `hcl:"max_burst_length,optional"`
	MaxRecvDataSegmentLength *int   `hcl:"max_recv_data_segment_length,optional"`
	InitialR2T               string `hcl:"initial_r2t,optional"`
	ImmediateData            string `hcl:"immediate_data,optional"`
	DataPDUInOrder           string `hcl:"data_pdu_in_order,optional"`
	DataSequenceInOrder      string `hcl:"data_sequence_in_order,optional"`
	ErrorRecoveryLevel       *int   `hcl:"error_recovery_level,optional"`
	Timeout                  *int   `hcl:"timeout,optional"`
	NopInInterval            *int   `hcl:"nop_in_interval,optional"`
	MaxR2T                   *int   `hcl:"max_r2t,optional"`
	DiscoveryAuthMethod      string `hcl:"discovery_auth_method,optional"`
	DiscoveryAuthGroup       string `hcl:"discovery_auth_group,optional"`
}
