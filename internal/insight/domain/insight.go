package domain

import "time"

// Highlight is one digest entry: the email's metadata plus its one-line summary.
// Error is set when the summary could not be produced; Summary then holds a placeholder.
type Highlight struct {
	EmailID    string    `json:"emailId"`
	From       string    `json:"from"`
	FromName   string    `json:"fromName"`
	Subject    string    `json:"subject"`
	Snippet    string    `json:"snippet"`
	ReceivedAt time.Time `json:"receivedAt"`
	Summary    string    `json:"summary"`
	Error      string    `json:"error,omitempty"`
}

// PriorityEmail is the email picked as most important, with a two-sentence explanation.
type PriorityEmail struct {
	EmailID     string    `json:"emailId"`
	From        string    `json:"from"`
	FromName    string    `json:"fromName"`
	Subject     string    `json:"subject"`
	Snippet     string    `json:"snippet"`
	ReceivedAt  time.Time `json:"receivedAt"`
	Explanation string    `json:"explanation"`
}

type Digest struct {
	ImportantHighlights []*Highlight   `json:"importantHighlights"`
	TopPriorityEmail    *PriorityEmail `json:"topPriorityEmail"`
}

// Cluster groups emails of one batch. EmailIndexes always point into that batch.
type Cluster struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	EmailIndexes  []int    `json:"emailIndexes"`
	EmailIDs      []string `json:"emailIds"`
	EmailCount    int      `json:"emailCount"`
	Summary       string   `json:"summary"`
	ReplyStrategy string   `json:"replyStrategy"`
}

const (
	NodeTypeMe      = "me"
	NodeTypeCluster = "cluster"

	MeNodeID = "me"
)

type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
	Size  int    `json:"size"`
}

type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

type ClusterResult struct {
	Clusters  []*Cluster `json:"clusters"`
	GraphData GraphData  `json:"graphData"`
}

type Topic struct {
	Name         string   `json:"name"`
	Count        int      `json:"count"`
	Keywords     []string `json:"keywords"`
	EmailIndexes []int    `json:"emailIndexes"`
}

// TopicPoint counts a day's emails per topic name. Date is YYYY-MM-DD (UTC).
type TopicPoint struct {
	Date   string         `json:"date"`
	Counts map[string]int `json:"counts"`
}

type TopicResult struct {
	TopicData      []*Topic     `json:"topicData"`
	TopicEvolution []TopicPoint `json:"topicEvolution"`
}
