package usecase

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	emaildomain "mailsync-backend/internal/email/domain"
	"mailsync-backend/internal/insight/domain"
	"mailsync-backend/pkg/ai"
	"mailsync-backend/pkg/fuzzy"
)

var indexLinePattern = regexp.MustCompile(`(?i)\bindex\b\s*[:=#]?\s*\[?\s*(-?\d+)`)

// parseIndex reads the stage-1 answer. It accepts {"index": i}, an "Index: i" line
// or a bare integer, and reports false for anything else or an index outside [0, n).
func parseIndex(reply string, n int) (int, bool) {
	idx, ok := rawIndex(reply)
	if !ok || idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}

func rawIndex(reply string) (int, bool) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return 0, false
	}

	var obj struct {
		Index *json.Number `json:"index"`
	}
	if err := json.Unmarshal([]byte(ai.ExtractJSON(reply)), &obj); err == nil && obj.Index != nil {
		if v, err := obj.Index.Int64(); err == nil {
			return int(v), true
		}
		return 0, false
	}

	if m := indexLinePattern.FindStringSubmatch(reply); m != nil {
		v, err := strconv.Atoi(m[1])
		return v, err == nil
	}

	bare := strings.Trim(reply, "[]().` \n\t")
	if v, err := strconv.Atoi(bare); err == nil {
		return v, true
	}
	return 0, false
}

type clusterReply struct {
	Clusters []struct {
		Name          string `json:"name"`
		EmailIndexes  []int  `json:"emailIndexes"`
		Summary       string `json:"summary"`
		ReplyStrategy string `json:"replyStrategy"`
	} `json:"clusters"`
}

// parseClusters decodes the clustering reply against a batch of emails. Indexes
// outside the batch and repeats within a cluster are dropped, and so are clusters
// left empty.
func parseClusters(reply string, emails []*emaildomain.Email) ([]*domain.Cluster, error) {
	var parsed clusterReply
	if err := json.Unmarshal([]byte(ai.ExtractJSON(reply)), &parsed); err != nil {
		return nil, fmt.Errorf("decode clusters: %w", err)
	}

	clusters := make([]*domain.Cluster, 0, len(parsed.Clusters))
	for _, c := range parsed.Clusters {
		indexes := validIndexes(c.EmailIndexes, len(emails))
		if len(indexes) == 0 {
			continue
		}

		ids := make([]string, len(indexes))
		for i, idx := range indexes {
			ids[i] = emails[idx].ID
		}

		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = "Untitled"
		}
		clusters = append(clusters, &domain.Cluster{
			ID:            fmt.Sprintf("cluster-%d", len(clusters)),
			Name:          name,
			EmailIndexes:  indexes,
			EmailIDs:      ids,
			EmailCount:    len(indexes),
			Summary:       strings.TrimSpace(c.Summary),
			ReplyStrategy: strings.TrimSpace(c.ReplyStrategy),
		})
	}
	return clusters, nil
}

func validIndexes(raw []int, n int) []int {
	seen := make(map[int]bool, len(raw))
	out := make([]int, 0, len(raw))
	for _, idx := range raw {
		if idx < 0 || idx >= n || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out
}

// buildGraph links a central "me" node to every cluster, then adds a few links
// among the first three clusters.
func buildGraph(clusters []*domain.Cluster) domain.GraphData {
	total := 0
	for _, c := range clusters {
		total += c.EmailCount
	}

	graph := domain.GraphData{
		Nodes: []domain.GraphNode{{ID: domain.MeNodeID, Label: "Me", Type: domain.NodeTypeMe, Size: total}},
		Links: make([]domain.GraphLink, 0, len(clusters)+3),
	}
	for _, c := range clusters {
		graph.Nodes = append(graph.Nodes, domain.GraphNode{ID: c.ID, Label: c.Name, Type: domain.NodeTypeCluster, Size: c.EmailCount})
		graph.Links = append(graph.Links, domain.GraphLink{Source: domain.MeNodeID, Target: c.ID})
	}

	for _, pair := range [][2]int{{0, 1}, {1, 2}, {0, 2}} {
		if pair[1] < len(clusters) {
			graph.Links = append(graph.Links, domain.GraphLink{Source: clusters[pair[0]].ID, Target: clusters[pair[1]].ID})
		}
	}
	return graph
}

type topicReply struct {
	Topics []struct {
		Name         string   `json:"name"`
		Keywords     []string `json:"keywords"`
		EmailIndexes []int    `json:"emailIndexes"`
	} `json:"topics"`
}

// parseTopics decodes the topic reply and merges near-duplicate names. Topics are
// ordered by descending email count, then name.
func parseTopics(reply string, n int) ([]*domain.Topic, error) {
	var parsed topicReply
	if err := json.Unmarshal([]byte(ai.ExtractJSON(reply)), &parsed); err != nil {
		return nil, fmt.Errorf("decode topics: %w", err)
	}

	var topics []*domain.Topic
	for _, t := range parsed.Topics {
		name := strings.TrimSpace(t.Name)
		indexes := validIndexes(t.EmailIndexes, n)
		if name == "" || len(indexes) == 0 {
			continue
		}

		var target *domain.Topic
		for _, existing := range topics {
			if fuzzy.SameTopic(existing.Name, name) {
				target = existing
				break
			}
		}
		if target == nil {
			target = &domain.Topic{Name: name}
			topics = append(topics, target)
		}
		target.EmailIndexes = mergeInts(target.EmailIndexes, indexes)
		target.Keywords = mergeKeywords(target.Keywords, t.Keywords)
	}

	for _, t := range topics {
		sort.Ints(t.EmailIndexes)
		t.Count = len(t.EmailIndexes)
		if t.Keywords == nil {
			t.Keywords = []string{}
		}
	}
	sort.SliceStable(topics, func(i, j int) bool {
		if topics[i].Count != topics[j].Count {
			return topics[i].Count > topics[j].Count
		}
		return topics[i].Name < topics[j].Name
	})

	if topics == nil {
		topics = []*domain.Topic{}
	}
	return topics, nil
}

func mergeInts(dst, src []int) []int {
	seen := make(map[int]bool, len(dst))
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range src {
		if !seen[v] {
			seen[v] = true
			dst = append(dst, v)
		}
	}
	return dst
}

func mergeKeywords(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, k := range dst {
		seen[fuzzy.Normalize(k)] = true
	}
	for _, k := range src {
		key := fuzzy.Normalize(k)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		dst = append(dst, strings.TrimSpace(k))
	}
	return dst
}

// topicEvolution counts, per UTC day, how many emails of each topic arrived.
// Days are ascending and every point carries every topic (zero when absent).
func topicEvolution(topics []*domain.Topic, emails []*emaildomain.Email) []domain.TopicPoint {
	byDay := make(map[string]map[string]int)
	for _, t := range topics {
		for _, idx := range t.EmailIndexes {
			received := emails[idx].ReceivedAt
			if received.IsZero() {
				continue
			}
			day := received.UTC().Format("2006-01-02")
			if byDay[day] == nil {
				byDay[day] = make(map[string]int)
			}
			byDay[day][t.Name]++
		}
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	points := make([]domain.TopicPoint, 0, len(days))
	for _, day := range days {
		counts := make(map[string]int, len(topics))
		for _, t := range topics {
			counts[t.Name] = byDay[day][t.Name]
		}
		points = append(points, domain.TopicPoint{Date: day, Counts: counts})
	}
	return points
}
