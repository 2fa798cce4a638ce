package domain

// TopicCount is the number of reported items in one topic.
type TopicCount struct {
	Topic string
	Items int
}

// Digest summarizes a finished report for outbound notification.
type Digest struct {
	Date       Date
	Topics     []TopicCount
	ReportPath string
}

// Total is the number of items across all topics.
func (d Digest) Total() int {
	var n int
	for _, t := range d.Topics {
		n += t.Items
	}
	return n
}
