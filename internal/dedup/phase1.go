package dedup

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PackmindHub/context-evaluator-sub000/internal/types"
)

// Cluster is a set of issues Phase 1 considers near-duplicates. One
// representative survives; the rest are removed.
type Cluster struct {
	Representative *types.Issue   `json:"representative"`
	Removed        []*types.Issue `json:"removed"`
	Reason         string         `json:"reason"`
}

// Phase1Result is the output of rule-based clustering.
type Phase1Result struct {
	// Deduplicated are the surviving issues, in first-seen order.
	Deduplicated []*types.Issue
	// Removed are the non-representative cluster members.
	Removed []*types.Issue
	// Clusters records what was merged and why.
	Clusters []Cluster

	// LocationCandidates marks surviving issues (by deduplication ID) that
	// share a location with another survivor but fell below the similarity
	// threshold. Phase 2 decides whether they are true duplicates.
	LocationCandidates map[string]bool
	// EntityCandidates maps surviving issue IDs to the domain entities they
	// share with at least one other survivor (two or more shared entities
	// required).
	EntityCandidates map[string][]string
}

// RunPhase1 clusters issues by location proximity and text similarity.
// Issues merge when they sit in the same file within the location tolerance
// AND their normalized text similarity meets the threshold. Each cluster
// keeps the highest-severity issue (first seen wins ties).
func RunPhase1(issues []*types.Issue, cfg Config) *Phase1Result {
	result := &Phase1Result{
		LocationCandidates: make(map[string]bool),
		EntityCandidates:   make(map[string][]string),
	}

	// index preserves first-seen order for tie-breaking and output ordering.
	index := make(map[*types.Issue]int, len(issues))
	for i, issue := range issues {
		index[issue] = i
	}

	type cluster struct {
		members []*types.Issue
	}

	var clusters []*cluster
	byIssue := make(map[*types.Issue]*cluster)

	// Greedy clustering per file: an issue joins the first cluster containing
	// any member it is co-located with and similar enough to. Matching against
	// every member (not just the first) lets chains collapse: if B merged with
	// A, a later C near B still joins even when C is outside A's tolerance.
	byFile := make(map[string][]*types.Issue)
	var noFile []*types.Issue
	for _, issue := range issues {
		file := issue.PrimaryFile()
		if file == "" {
			noFile = append(noFile, issue)
			continue
		}
		byFile[file] = append(byFile[file], issue)
	}

	for _, group := range byFile {
		var fileClusters []*cluster
		for _, issue := range group {
			var joined *cluster
			for _, cl := range fileClusters {
				for _, member := range cl.members {
					if !coLocated(member, issue, cfg.LocationTolerance) {
						continue
					}
					if similarity(member.Text(), issue.Text()) >= cfg.SimilarityThreshold {
						joined = cl
						break
					}
					// Same place, different wording. Not merged, but both
					// sides are flagged for the AI pass.
					result.LocationCandidates[member.DedupID] = true
					result.LocationCandidates[issue.DedupID] = true
				}
				if joined != nil {
					break
				}
			}
			if joined == nil {
				joined = &cluster{}
				fileClusters = append(fileClusters, joined)
			}
			joined.members = append(joined.members, issue)
			byIssue[issue] = joined
		}
		clusters = append(clusters, fileClusters...)
	}
	for _, issue := range noFile {
		cl := &cluster{members: []*types.Issue{issue}}
		clusters = append(clusters, cl)
		byIssue[issue] = cl
	}

	// Pick representatives and assemble output in first-seen order.
	representatives := make(map[*types.Issue]bool)
	for _, cl := range clusters {
		rep := cl.members[0]
		for _, member := range cl.members[1:] {
			if member.Severity > rep.Severity {
				rep = member
			}
		}
		representatives[rep] = true
		if len(cl.members) > 1 {
			c := Cluster{Representative: rep, Reason: "same location, equivalent text"}
			for _, member := range cl.members {
				if member != rep {
					c.Removed = append(c.Removed, member)
				}
			}
			result.Clusters = append(result.Clusters, c)
		}
	}

	for _, issue := range issues {
		if representatives[issue] {
			result.Deduplicated = append(result.Deduplicated, issue)
		} else {
			result.Removed = append(result.Removed, issue)
		}
	}

	markEntityCandidates(result.Deduplicated, result.EntityCandidates)

	// Location candidacy only matters for survivors.
	for id := range result.LocationCandidates {
		if !survives(result.Deduplicated, id) {
			delete(result.LocationCandidates, id)
		}
	}

	return result
}

func survives(issues []*types.Issue, id string) bool {
	for _, issue := range issues {
		if issue.DedupID == id {
			return true
		}
	}
	return false
}

// coLocated reports whether two issues sit in the same file with line ranges
// within tolerance of each other. Overlapping ranges count as distance zero.
func coLocated(a, b *types.Issue, tolerance int) bool {
	for _, la := range a.Locations {
		for _, lb := range b.Locations {
			if la.File != lb.File {
				continue
			}
			if rangeDistance(la, lb) <= tolerance {
				return true
			}
		}
	}
	return false
}

func rangeDistance(a, b types.Location) int {
	if a.StartLine <= b.EndLine && b.StartLine <= a.EndLine {
		return 0
	}
	if a.EndLine < b.StartLine {
		return b.StartLine - a.EndLine
	}
	return a.StartLine - b.EndLine
}

// similarity is token-overlap (Jaccard) over normalized text. 1.0 for
// identical token sets, 0.0 for disjoint ones.
func similarity(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	intersection := 0
	for token := range ta {
		if tb[token] {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

var nonWordRegex = regexp.MustCompile(`[^a-z0-9.]+`)

func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, token := range nonWordRegex.Split(strings.ToLower(text), -1) {
		token = strings.Trim(token, ".")
		if len(token) >= 2 {
			tokens[token] = true
		}
	}
	return tokens
}

// Domain entities worth matching on even when the surrounding prose differs:
// two issues both naming the same database or framework are likely about the
// same underlying problem.
var entityVocabulary = map[string]bool{
	// Databases
	"mysql": true, "postgresql": true, "postgres": true, "mongodb": true,
	"redis": true, "sqlite": true, "mariadb": true, "cassandra": true,
	"elasticsearch": true, "dynamodb": true, "clickhouse": true,
	// ORMs and frameworks
	"typeorm": true, "sequelize": true, "prisma": true, "hibernate": true,
	"gorm": true, "sqlalchemy": true, "django": true, "rails": true,
	"spring": true, "express": true, "fastify": true, "nestjs": true,
	"flask": true, "laravel": true, "react": true, "vue": true,
	"angular": true, "svelte": true, "nextjs": true,
	// Infrastructure
	"docker": true, "kubernetes": true, "terraform": true, "nginx": true,
	"kafka": true, "rabbitmq": true, "graphql": true, "grpc": true,
}

var ipv4Regex = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

// extractEntities returns the case-folded domain entities mentioned in text:
// vocabulary hits plus dotted IPv4 addresses.
func extractEntities(text string) map[string]bool {
	entities := make(map[string]bool)
	for token := range tokenize(text) {
		if entityVocabulary[token] {
			entities[token] = true
		}
	}
	for _, ip := range ipv4Regex.FindAllString(strings.ToLower(text), -1) {
		entities[ip] = true
	}
	return entities
}

// extractSharedEntities returns the sorted intersection of two issues' entity
// sets. Entities mentioned by only one side are excluded.
func extractSharedEntities(a, b *types.Issue) []string {
	ea := extractEntities(a.Text())
	eb := extractEntities(b.Text())
	var shared []string
	for entity := range ea {
		if eb[entity] {
			shared = append(shared, entity)
		}
	}
	sort.Strings(shared)
	return shared
}

// markEntityCandidates flags issue pairs sharing two or more domain entities.
// A single shared entity is too weak a signal to bother the AI with.
func markEntityCandidates(issues []*types.Issue, candidates map[string][]string) {
	for i := 0; i < len(issues); i++ {
		for j := i + 1; j < len(issues); j++ {
			shared := extractSharedEntities(issues[i], issues[j])
			if len(shared) < 2 {
				continue
			}
			candidates[issues[i].DedupID] = mergeEntities(candidates[issues[i].DedupID], shared)
			candidates[issues[j].DedupID] = mergeEntities(candidates[issues[j].DedupID], shared)
		}
	}
}

func mergeEntities(existing, more []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[e] = true
	}
	for _, e := range more {
		if !seen[e] {
			existing = append(existing, e)
			seen[e] = true
		}
	}
	sort.Strings(existing)
	return existing
}
