package sshconfig

import "strings"

// HostReader returns the raw directives of an existing Host stanza.
type HostReader interface {
	Host(name string) map[string]string
}

// HostWriter stores a validated Host stanza.
type HostWriter interface {
	Add(host string, entry CanonicalEntry, order ...string) error
}

// AddHost validates the directives for host and hands the resulting entry
// to w. Nothing is passed to w when validation fails, including when a
// value is blank or contains a line break. The returned entry includes Host.
func AddHost(w HostWriter, host string, pairs Pairs) (CanonicalEntry, error) {
	all := make(Pairs, 0, len(pairs)+1)
	all = append(all, KeyValue{Key: "Host", Value: host})
	all = append(all, pairs...)

	entry, err := ToCanonicalEntry(all)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		key := lowercaseToCanonical[strings.ToLower(kv.Key)]
		if err := checkLine(key, kv.Value); err != nil {
			return nil, err
		}
		order = append(order, key)
	}
	if err := w.Add(host, entry, order...); err != nil {
		return nil, err
	}
	return entry, nil
}

// ReadHost returns the stanza for host with lowercased keys. The stanza is
// not validated: files written by hand may use directives this package does
// not manage. It returns nil when the host does not exist.
func ReadHost(r HostReader, host string) LowercaseEntry {
	raw := r.Host(host)
	if raw == nil {
		return nil
	}
	out := make(LowercaseEntry, len(raw)+1)
	out["host"] = host
	for k, v := range raw {
		out[strings.ToLower(k)] = v
	}
	return out
}
