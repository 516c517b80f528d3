package diagram

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"
)

// DomainDiagram is the hash domain for diagram checksums. The version suffix
// allows the algorithm to change without colliding with stored values.
const DomainDiagram = "erdsync/diagram/v1"

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Checksum returns a content hash of d.
//
// Timestamps are excluded so that two snapshots with the same content have
// the same checksum. Names are NFC-normalized first so that visually equal
// identifiers hash equally regardless of how they were typed.
func Checksum(d Diagram) (string, error) {
	data, err := MarshalCanonical(d)
	if err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}
	return hashWithDomain(DomainDiagram, data), nil
}

// MarshalCanonical encodes d as JSON with HTML escaping disabled, NFC
// normalized strings and zeroed timestamps. Struct field order gives a
// stable key order.
func MarshalCanonical(d Diagram) ([]byte, error) {
	c := normalize(d)
	c.CreatedAt = time.Time{}
	c.UpdatedAt = time.Time{}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("marshal canonical: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func normalize(d Diagram) Diagram {
	c := d.Clone()
	c.Name = norm.NFC.String(c.Name)
	for i := range c.Tables {
		t := &c.Tables[i]
		t.Name = norm.NFC.String(t.Name)
		t.Schema = norm.NFC.String(t.Schema)
		for j := range t.Fields {
			t.Fields[j].Name = norm.NFC.String(t.Fields[j].Name)
		}
	}
	for i := range c.Relationships {
		c.Relationships[i].Name = norm.NFC.String(c.Relationships[i].Name)
	}
	for i := range c.Areas {
		c.Areas[i].Name = norm.NFC.String(c.Areas[i].Name)
	}
	for i := range c.Notes {
		c.Notes[i].Content = norm.NFC.String(c.Notes[i].Content)
	}
	for i := range c.CustomTypes {
		c.CustomTypes[i].Name = norm.NFC.String(c.CustomTypes[i].Name)
	}
	return c
}
