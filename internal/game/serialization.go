package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SnapshotChecksum is a deterministic digest of a snapshot. Two games in the same state
// produce the same hash regardless of when the snapshot was taken.
type SnapshotChecksum struct {
	Hash      string // SHA-256 of the canonical representation
	Timestamp string // when the snapshot was taken
	Version   int
}

// Checksum computes the snapshot's deterministic checksum. Timestamps are excluded.
func (s *Snapshot) Checksum() (*SnapshotChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(s.canonical())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &SnapshotChecksum{
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		Timestamp: s.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		Version:   s.Version,
	}, nil
}

// canonical renders the snapshot as text. Collection order is kept where it is
// dispatch order; maps are sorted by key.
func (s *Snapshot) canonical() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "GAME:%s|%d|%d|%t\n", s.GameID, s.Version, s.SubTurn, s.InsideTurn)

	for i, p := range s.Players {
		fmt.Fprintf(&buf, "PLAYER:%d|%s|%s|%d|%t|%s\n", i, p.ID, p.Name, p.Team, p.HadCity, p.AchievedEnding)
		buf.WriteString("  TERRITORY:")
		buf.WriteString(joinPoints(p.Territory))
		buf.WriteString("\n")
	}

	for _, a := range s.Actors {
		fmt.Fprintf(&buf, "ACTOR:%s|%s|%d|%t|%s|%s|%s|%d\n",
			a.ID,
			a.Kind,
			a.Owner,
			a.Placed,
			a.Position,
			formatFloat(a.RemainAP),
			formatFloat(a.RemainHP),
			a.Flags,
		)
		buf.WriteString("  PATH:")
		buf.WriteString(joinPoints(a.Path))
		buf.WriteString("\n")
		cds := make([]string, len(a.Cooldowns))
		for i, cd := range a.Cooldowns {
			cds[i] = strconv.Itoa(cd)
		}
		buf.WriteString("  COOLDOWNS:")
		buf.WriteString(strings.Join(cds, ","))
		buf.WriteString("\n")
	}

	for _, e := range s.Effects {
		fmt.Fprintf(&buf, "EFFECT:%s|%s|%s|%s|%d|%d|%d\n",
			e.ID,
			e.Kind,
			e.Tag,
			e.TargetActor,
			e.TargetPlayer,
			e.Duration,
			e.LeftTurn,
		)
		keys := make([]string, 0, len(e.Params))
		for k := range e.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&buf, "  PARAM:%s=%s\n", k, formatFloat(e.Params[k]))
		}
	}

	for _, q := range s.Quests {
		fmt.Fprintf(&buf, "QUEST:%s|%s|%d|%d|%d|%d|%s|%d\n",
			q.ID,
			q.Spec.Name,
			q.Spec.PostingTurn,
			q.Spec.LimitTurn,
			q.Requestee,
			q.Requester,
			q.Status,
			q.LeftTurn,
		)
	}

	return buf.String()
}

func joinPoints(pts []Point) string {
	parts := make([]string, len(pts))
	for i, pt := range pts {
		parts[i] = pt.String()
	}
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// VerifyChecksum reports whether the snapshot still matches expected.
func (s *Snapshot) VerifyChecksum(expected *SnapshotChecksum) (bool, error) {
	if expected == nil {
		return false, fmt.Errorf("%w: expected checksum is nil", ErrInvalidArgument)
	}
	computed, err := s.Checksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// Encode serializes the snapshot with gob. This is the format used by replay files and stores.
func (s *Snapshot) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot deserializes a snapshot produced by Encode.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &s, nil
}

// ValidateRoundtrip checks that the snapshot survives Encode and DecodeSnapshot unchanged.
func ValidateRoundtrip(s *Snapshot) error {
	original, err := s.Checksum()
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}
	data, err := s.Encode()
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}
	decoded, err := DecodeSnapshot(data)
	if err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}
	roundtrip, err := decoded.Checksum()
	if err != nil {
		return fmt.Errorf("failed to compute deserialized checksum: %w", err)
	}
	if original.Hash != roundtrip.Hash {
		return fmt.Errorf("checksum mismatch: original=%s, deserialized=%s", original.Hash, roundtrip.Hash)
	}
	return nil
}
