// internal/domain/models/team.go
package models

import (
	"time"

	"github.com/dalemusser/waffle/pantry/text"
)

// TeamColors is the fixed palette teams draw their display color from.
// The color is a deterministic function of the team ID so a team keeps
// a stable identity across devices before the backfill write lands.
var TeamColors = []string{
	"#3b82f6", // blue
	"#22c55e", // green
	"#f97316", // orange
	"#ec4899", // pink
	"#a855f7", // purple
	"#06b6d4", // cyan
	"#facc15", // yellow
}

// Team is a document in the teams collection.
//
// NOTE:
//   - MemberIDs does not necessarily include the leader; use
//     EffectiveMembers for the full set.
//   - Color is persisted once and never recomputed after it is set.
type Team struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	NameCI    string    `bson:"name_ci" json:"name_ci"`
	LeaderID  string    `bson:"leader_id,omitempty" json:"leader_id,omitempty"`
	MemberIDs []string  `bson:"member_ids" json:"member_ids"`
	Color     string    `bson:"color,omitempty" json:"color,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// ApplyDefaults fills fields a raw document may omit.
func (t *Team) ApplyDefaults() {
	if t.MemberIDs == nil {
		t.MemberIDs = []string{}
	}
	if t.NameCI == "" {
		t.NameCI = text.Fold(t.Name)
	}
}

// EffectiveMembers returns {LeaderID} ∪ MemberIDs, deduplicated, with
// the leader first. The leader is implicitly a member even when absent
// from MemberIDs.
func (t Team) EffectiveMembers() []string {
	seen := make(map[string]struct{}, len(t.MemberIDs)+1)
	out := make([]string, 0, len(t.MemberIDs)+1)
	if t.LeaderID != "" {
		seen[t.LeaderID] = struct{}{}
		out = append(out, t.LeaderID)
	}
	for _, id := range t.MemberIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// HasMember reports whether uid is in the effective member set.
func (t Team) HasMember(uid string) bool {
	if uid == "" {
		return false
	}
	if uid == t.LeaderID {
		return true
	}
	for _, id := range t.MemberIDs {
		if id == uid {
			return true
		}
	}
	return false
}

// PickTeamColor derives the palette color for a team ID. Matches the
// hash the mobile clients used so pre-backfill and post-backfill colors
// agree: h = h*31 + byte, truncated to uint32, modulo the palette size.
func PickTeamColor(teamID string) string {
	if teamID == "" {
		return TeamColors[0]
	}
	var h uint32
	for i := 0; i < len(teamID); i++ {
		h = h*31 + uint32(teamID[i])
	}
	return TeamColors[int(h%uint32(len(TeamColors)))]
}
