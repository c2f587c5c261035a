package usecase

import (
	"fmt"
	"testing"
	"time"

	emaildomain "mailsync-backend/internal/email/domain"
	"mailsync-backend/internal/insight/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchOf(n int) []*emaildomain.Email {
	emails := make([]*emaildomain.Email, n)
	for i := range emails {
		emails[i] = &emaildomain.Email{
			ID:      fmt.Sprintf("m%d", i),
			From:    fmt.Sprintf("sender%d@example.com", i),
			Subject: fmt.Sprintf("Subject %d", i),
			Snippet: fmt.Sprintf("snippet %d", i),
		}
	}
	return emails
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  int
		ok    bool
	}{
		{"json object", `{"index": 2}`, 2, true},
		{"fenced json", "```json\n{\"index\": 0}\n```", 0, true},
		{"index line", "Index: 3", 3, true},
		{"index line in prose", "The most important one is index 1 because of the deadline.", 1, true},
		{"bracketed index", "Index: [4]", 4, true},
		{"bare integer", " 4 ", 4, true},
		{"bare bracketed", "[1]", 1, true},
		{"out of range", `{"index": 5}`, 0, false},
		{"negative", "Index: -1", 0, false},
		{"fractional", `{"index": 1.5}`, 0, false},
		{"wrong key", `{"email": 1}`, 0, false},
		{"subject text", "Re: Quarterly budget from Dana", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseIndex(tt.reply, 5)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseClusters_DropsInvalidIndexes(t *testing.T) {
	emails := batchOf(4)
	reply := `{"clusters":[
		{"name":"Budget","emailIndexes":[0,2,2,9,-1],"summary":"Money talk.","replyStrategy":"Confirm numbers."},
		{"name":"Ghost","emailIndexes":[7,8],"summary":"x","replyStrategy":"y"},
		{"name":"  ","emailIndexes":[3],"summary":"Misc","replyStrategy":"Skim."}
	]}`

	clusters, err := parseClusters(reply, emails)
	require.NoError(t, err)
	require.Len(t, clusters, 2)

	assert.Equal(t, "cluster-0", clusters[0].ID)
	assert.Equal(t, "Budget", clusters[0].Name)
	assert.Equal(t, []int{0, 2}, clusters[0].EmailIndexes)
	assert.Equal(t, []string{"m0", "m2"}, clusters[0].EmailIDs)
	assert.Equal(t, 2, clusters[0].EmailCount)

	assert.Equal(t, "cluster-1", clusters[1].ID)
	assert.Equal(t, "Untitled", clusters[1].Name)
	assert.Equal(t, []int{3}, clusters[1].EmailIndexes)

	for _, c := range clusters {
		for _, idx := range c.EmailIndexes {
			assert.True(t, idx >= 0 && idx < len(emails))
		}
	}
}

func TestParseClusters_Malformed(t *testing.T) {
	_, err := parseClusters("I could not group these emails.", batchOf(2))
	assert.Error(t, err)
}

func TestBuildGraph(t *testing.T) {
	for n := 0; n <= 5; n++ {
		t.Run(fmt.Sprintf("%d clusters", n), func(t *testing.T) {
			clusters := make([]*domain.Cluster, n)
			for i := range clusters {
				clusters[i] = &domain.Cluster{ID: fmt.Sprintf("cluster-%d", i), Name: fmt.Sprintf("C%d", i), EmailCount: i + 1}
			}

			graph := buildGraph(clusters)

			require.Len(t, graph.Nodes, n+1)
			assert.Equal(t, domain.MeNodeID, graph.Nodes[0].ID)
			assert.Equal(t, domain.NodeTypeMe, graph.Nodes[0].Type)

			fromMe := map[string]int{}
			for _, l := range graph.Links {
				if l.Source == domain.MeNodeID {
					fromMe[l.Target]++
				}
				assert.NotEqual(t, domain.MeNodeID, l.Target)
			}
			assert.Len(t, fromMe, n)
			for _, c := range clusters {
				assert.Equal(t, 1, fromMe[c.ID], c.ID)
			}

			extra := len(graph.Links) - n
			switch {
			case n <= 1:
				assert.Equal(t, 0, extra)
			case n == 2:
				assert.Equal(t, 1, extra)
			default:
				assert.Equal(t, 3, extra)
			}
		})
	}
}

func TestParseTopics_MergesSimilarNames(t *testing.T) {
	reply := `{"topics":[
		{"name":"Budget","keywords":["money","Q3"],"emailIndexes":[0,1]},
		{"name":"Hiring","keywords":["interview"],"emailIndexes":[2]},
		{"name":"budgets","keywords":["Money","spend"],"emailIndexes":[1,3]},
		{"name":"Nothing","keywords":[],"emailIndexes":[42]}
	]}`

	topics, err := parseTopics(reply, 4)
	require.NoError(t, err)
	require.Len(t, topics, 2)

	assert.Equal(t, "Budget", topics[0].Name)
	assert.Equal(t, 3, topics[0].Count)
	assert.Equal(t, []int{0, 1, 3}, topics[0].EmailIndexes)
	assert.Equal(t, []string{"money", "Q3", "spend"}, topics[0].Keywords)

	assert.Equal(t, "Hiring", topics[1].Name)
	assert.Equal(t, 1, topics[1].Count)
}

func TestTopicEvolution(t *testing.T) {
	day1 := time.Date(2026, 3, 13, 22, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	emails := batchOf(3)
	emails[0].ReceivedAt = day2
	emails[1].ReceivedAt = day1
	emails[2].ReceivedAt = day2

	topics := []*domain.Topic{
		{Name: "Budget", EmailIndexes: []int{0, 1}},
		{Name: "Hiring", EmailIndexes: []int{2}},
	}

	points := topicEvolution(topics, emails)
	require.Len(t, points, 2)
	assert.Equal(t, "2026-03-13", points[0].Date)
	assert.Equal(t, map[string]int{"Budget": 1, "Hiring": 0}, points[0].Counts)
	assert.Equal(t, "2026-03-14", points[1].Date)
	assert.Equal(t, map[string]int{"Budget": 1, "Hiring": 1}, points[1].Counts)
}
