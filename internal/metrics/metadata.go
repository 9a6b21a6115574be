package metrics

// DefaultPing is used when a metric is declared without any ping.
const DefaultPing = "metrics"

// CommonMetricData describes a declared metric. It is copied on declaration
// and never mutated afterwards.
type CommonMetricData struct {
	Category     string
	Name         string
	SendInPings  []string
	Lifetime     Lifetime
	Disabled     bool
	DynamicLabel string
}

// Normalize returns a copy safe to share between goroutines.
func (m CommonMetricData) Normalize() CommonMetricData {
	pings := make([]string, 0, len(m.SendInPings))
	for _, p := range m.SendInPings {
		if p != "" {
			pings = append(pings, p)
		}
	}
	if len(pings) == 0 {
		pings = append(pings, DefaultPing)
	}
	m.SendInPings = pings
	return m
}

// BaseIdentifier is category.name, or just the name when there is no category.
func (m CommonMetricData) BaseIdentifier() string {
	if m.Category == "" {
		return m.Name
	}
	return m.Category + "." + m.Name
}

// Identifier is the storage key, including the dynamic label if any.
func (m CommonMetricData) Identifier() string {
	if m.DynamicLabel == "" {
		return m.BaseIdentifier()
	}
	return m.BaseIdentifier() + "/" + m.DynamicLabel
}

// WithLabel returns a copy of m recording under the given label.
func (m CommonMetricData) WithLabel(label string) CommonMetricData {
	m.SendInPings = append([]string(nil), m.SendInPings...)
	m.DynamicLabel = label
	return m
}

// DefaultStore is the first ping the metric is sent in.
func (m CommonMetricData) DefaultStore() string {
	if len(m.SendInPings) == 0 {
		return DefaultPing
	}
	return m.SendInPings[0]
}

// SplitIdentifier separates a stored identifier into its base and label.
func SplitIdentifier(id string) (base, label string) {
	for i := 0; i < len(id); i++ {
		if id[i] == '/' {
			return id[:i], id[i+1:]
		}
	}
	return id, ""
}
