package record

// CredentialTypeName is the storage namespace for credential records.
const CredentialTypeName = "CredentialRecord"

// CredentialState is the issuance lifecycle. The zero value is
// CredentialOffered.
type CredentialState int

const (
	CredentialOffered CredentialState = iota
	CredentialRequested
	CredentialIssued
	CredentialRejected
)

var credentialStateNames = []string{"Offered", "Requested", "Issued", "Rejected"}

func (s CredentialState) String() string {
	return stateName(credentialStateNames, s)
}

func (s CredentialState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *CredentialState) UnmarshalText(b []byte) error {
	v, err := ParseCredentialState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseCredentialState parses the canonical state name.
func ParseCredentialState(v string) (CredentialState, error) {
	return parseState[CredentialState](credentialStateNames, "credential", v)
}

// CredentialTrigger drives CredentialRecord.Trigger.
type CredentialTrigger string

const (
	CredentialRequest CredentialTrigger = "Request"
	CredentialIssue   CredentialTrigger = "Issue"
	CredentialReject  CredentialTrigger = "Reject"
)

var credentialTransitions = transitions[CredentialState, CredentialTrigger]{
	{trigger: CredentialRequest, from: []CredentialState{CredentialOffered}, to: CredentialRequested},
	{trigger: CredentialIssue, from: []CredentialState{CredentialRequested}, to: CredentialIssued},
	{trigger: CredentialReject, from: []CredentialState{CredentialOffered, CredentialRequested}, to: CredentialRejected},
}

// CredentialRecord tracks one credential exchange with an issuer.
type CredentialRecord struct {
	Base
	State CredentialState `json:"state"`

	CredentialID           string            `json:"credential_id,omitempty"`
	CredentialDefinitionID string            `json:"credential_definition_id,omitempty"`
	SchemaID               string            `json:"schema_id,omitempty"`
	ConnectionID           string            `json:"connection_id,omitempty"`
	OfferJSON              string            `json:"offer_json,omitempty"`
	RequestJSON            string            `json:"request_json,omitempty"`
	CredentialJSON         string            `json:"credential_json,omitempty"`
	Values                 map[string]string `json:"values,omitempty"`
}

func NewCredentialRecord(id string) *CredentialRecord {
	return &CredentialRecord{Base: Base{ID: id}, State: CredentialOffered}
}

func (r *CredentialRecord) TypeName() string { return CredentialTypeName }
func (r *CredentialRecord) StateTag() string { return r.State.String() }

func (r *CredentialRecord) GetTag(name string) (string, bool) {
	return GetTag(r, name)
}

func (r *CredentialRecord) CanTrigger(t CredentialTrigger) bool {
	_, ok := credentialTransitions.next(r.State, t)
	return ok
}

// Trigger moves the record to its next state or fails with CodeInvalidState.
func (r *CredentialRecord) Trigger(t CredentialTrigger) error {
	next, ok := credentialTransitions.next(r.State, t)
	if !ok {
		return invalidTransition(CredentialTypeName, r.State, t)
	}
	r.State = next
	return nil
}
