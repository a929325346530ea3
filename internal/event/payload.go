package event

// Payload is the field set broadcast to observers for one handled envelope.
type Payload map[string]interface{}

// Base returns the fields every payload starts from.
func Base(env Envelope) Payload {
	return Payload{
		"id":     ShortID(env.ID),
		"action": env.Action,
		"name":   env.Name,
	}
}

// Merge applies overlay on top of the envelope's base fields. Overlay keys win,
// including id and name.
func Merge(env Envelope, overlay Payload) Payload {
	payload := Base(env)
	for k, v := range overlay {
		payload[k] = v
	}
	return payload
}
