package record

import "fmt"

// Participant is cached profile data for a user identifier. Staleness is
// acceptable; rows are refreshed opportunistically on fetch.
type Participant struct {
	ID        string
	Name      string
	AvatarURL string
	Metadata  map[string]any
}

// ToRecord converts the participant to its generic record form.
func (p *Participant) ToRecord() *Record {
	return &Record{
		ID:   p.ID,
		Type: TypeParticipant,
		Fields: map[string]any{
			"name":       p.Name,
			"avatar_url": p.AvatarURL,
			"metadata":   p.Metadata,
		},
	}
}

// ParticipantFromRecord converts a generic record into a Participant.
func ParticipantFromRecord(r *Record) (*Participant, error) {
	if r.Type != TypeParticipant {
		return nil, fmt.Errorf("record %q has type %q, want %q", r.ID, r.Type, TypeParticipant)
	}
	return &Participant{
		ID:        r.ID,
		Name:      stringField(r.Fields, "name"),
		AvatarURL: stringField(r.Fields, "avatar_url"),
		Metadata:  mapField(r.Fields, "metadata"),
	}, nil
}

// UserChannel is the per-user push channel record the server delivers
// record change events through.
type UserChannel struct {
	ID   string
	Name string
}

// ToRecord converts the channel to its generic record form.
func (u *UserChannel) ToRecord() *Record {
	return &Record{
		ID:     u.ID,
		Type:   TypeUserChannel,
		Fields: map[string]any{"name": u.Name},
	}
}

// UserChannelFromRecord converts a generic record into a UserChannel.
func UserChannelFromRecord(r *Record) (*UserChannel, error) {
	if r.Type != TypeUserChannel {
		return nil, fmt.Errorf("record %q has type %q, want %q", r.ID, r.Type, TypeUserChannel)
	}
	return &UserChannel{ID: r.ID, Name: stringField(r.Fields, "name")}, nil
}
