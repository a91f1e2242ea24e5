package record

// ConnectionTypeName is the storage namespace for connection records.
const ConnectionTypeName = "ConnectionRecord"

// ConnectionState is the pairwise connection lifecycle. The zero value is
// ConnectionInvited, so every newly built record starts there.
type ConnectionState int

const (
	ConnectionInvited ConnectionState = iota
	ConnectionNegotiating
	ConnectionConnected
	ConnectionError
)

var connectionStateNames = []string{"Invited", "Negotiating", "Connected", "Error"}

func (s ConnectionState) String() string {
	return stateName(connectionStateNames, s)
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ConnectionState) UnmarshalText(b []byte) error {
	v, err := ParseConnectionState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseConnectionState parses the canonical state name.
func ParseConnectionState(v string) (ConnectionState, error) {
	return parseState[ConnectionState](connectionStateNames, "connection", v)
}

// ConnectionTrigger drives ConnectionRecord.Trigger.
type ConnectionTrigger string

const (
	ConnectionInvitationAccept ConnectionTrigger = "InvitationAccept"
	ConnectionRequest          ConnectionTrigger = "Request"
	ConnectionResponse         ConnectionTrigger = "Response"
	ConnectionFail             ConnectionTrigger = "Fail"
)

// Request fires from Invited when we are the invitee and from Negotiating
// when the inviter receives it.
var connectionTransitions = transitions[ConnectionState, ConnectionTrigger]{
	{trigger: ConnectionInvitationAccept, from: []ConnectionState{ConnectionInvited}, to: ConnectionNegotiating},
	{trigger: ConnectionRequest, from: []ConnectionState{ConnectionInvited}, to: ConnectionNegotiating},
	{trigger: ConnectionRequest, from: []ConnectionState{ConnectionNegotiating}, to: ConnectionConnected},
	{trigger: ConnectionResponse, from: []ConnectionState{ConnectionNegotiating}, to: ConnectionConnected},
	{trigger: ConnectionFail, from: []ConnectionState{ConnectionInvited, ConnectionNegotiating}, to: ConnectionError},
}

// Alias is the display identity a peer presented.
type Alias struct {
	Name     string `json:"name,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Endpoint is where a peer's agent receives messages.
type Endpoint struct {
	Did    string `json:"did,omitempty"`
	Verkey string `json:"verkey,omitempty"`
	URI    string `json:"uri,omitempty"`
}

// ConnectionRecord tracks one pairwise relationship with another agent.
type ConnectionRecord struct {
	Base
	State ConnectionState `json:"state"`

	MyDid                string    `json:"my_did,omitempty"`
	TheirDid             string    `json:"their_did,omitempty"`
	MyVk                 string    `json:"my_vk,omitempty"`
	TheirVk              string    `json:"their_vk,omitempty"`
	Alias                *Alias    `json:"alias,omitempty"`
	Endpoint             *Endpoint `json:"endpoint,omitempty"`
	MultiPartyInvitation bool      `json:"multi_party_invitation,omitempty"`
}

func NewConnectionRecord(id string) *ConnectionRecord {
	return &ConnectionRecord{Base: Base{ID: id}, State: ConnectionInvited}
}

func (r *ConnectionRecord) TypeName() string { return ConnectionTypeName }
func (r *ConnectionRecord) StateTag() string { return r.State.String() }

func (r *ConnectionRecord) GetTag(name string) (string, bool) {
	return GetTag(r, name)
}

// CanTrigger reports whether t is allowed in the current state.
func (r *ConnectionRecord) CanTrigger(t ConnectionTrigger) bool {
	_, ok := connectionTransitions.next(r.State, t)
	return ok
}

// Trigger moves the record to its next state or fails with CodeInvalidState.
func (r *ConnectionRecord) Trigger(t ConnectionTrigger) error {
	next, ok := connectionTransitions.next(r.State, t)
	if !ok {
		return invalidTransition(ConnectionTypeName, r.State, t)
	}
	r.State = next
	return nil
}
