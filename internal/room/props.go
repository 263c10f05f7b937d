package room

// Prop is one passthrough attribute.
type Prop struct {
	Key   string
	Value string
}

// Props is an ordered string-keyed attribute bag. Keys are unique; Set
// overwrites in place and keeps the original position.
type Props []Prop

// Get returns the value stored under key.
func (p Props) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Set stores value under key, appending when the key is new.
func (p *Props) Set(key, value string) {
	for i := range *p {
		if (*p)[i].Key == key {
			(*p)[i].Value = value
			return
		}
	}
	*p = append(*p, Prop{Key: key, Value: value})
}

// Delete removes key, reporting whether it was present.
func (p *Props) Delete(key string) bool {
	for i := range *p {
		if (*p)[i].Key == key {
			*p = append((*p)[:i], (*p)[i+1:]...)
			return true
		}
	}
	return false
}

// Keys returns the keys in insertion order.
func (p Props) Keys() []string {
	keys := make([]string, len(p))
	for i, kv := range p {
		keys[i] = kv.Key
	}
	return keys
}

// Clone returns an independent copy; a nil bag stays nil.
func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	out := make(Props, len(p))
	copy(out, p)
	return out
}

// Without returns the props whose keys are not in reserved, preserving order.
// Writers use it so that recognized attributes always win over passthrough
// values of the same name.
func (p Props) Without(reserved map[string]bool) Props {
	var out Props
	for _, kv := range p {
		if !reserved[kv.Key] {
			out = append(out, kv)
		}
	}
	return out
}
