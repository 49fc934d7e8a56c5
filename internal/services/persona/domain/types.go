// Package domain holds persona types, the persona catalogue and service contracts
package domain

import (
	"strconv"
	"time"
)

// Persona is one entry of the visual catalogue
type Persona struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// Assignment binds a persona to an identity inside one scope (a post id)
// Nickname is the persona name, suffixed with _NN when the base collided
type Assignment struct {
	ScopeID     int64     `json:"scopeId"`
	IdentityKey string    `json:"identityKey"`
	Nickname    string    `json:"nickname"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	AssignedAt  time.Time `json:"assignedAt"`
}

// Table is the persisted mapping scope -> identity key -> assignment
type Table map[int64]map[string]Assignment

// Mode picks how an identity key is derived for anonymous users
type Mode string

const (
	// ModeStable keys by user id: one persona per user per scope
	ModeStable Mode = "stable"
	// ModePerInstance keys by user id and comment id: one persona per comment
	ModePerInstance Mode = "perInstance"
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool { return m == ModeStable || m == ModePerInstance }

// IdentityKey builds the key for a user under the given mode
// commentID is ignored in stable mode
func IdentityKey(mode Mode, userID, commentID int64) string {
	if mode == ModePerInstance {
		return strconv.FormatInt(userID, 10) + "_" + strconv.FormatInt(commentID, 10)
	}
	return strconv.FormatInt(userID, 10)
}

// Pool is an ordered catalogue of personas
type Pool []Persona

// DefaultPool is the emotion catalogue shipped with the app
var DefaultPool = Pool{
	{Name: "기쁨이", Icon: "😊", Color: "#FFD93D"},
	{Name: "행복이", Icon: "😄", Color: "#FFB84C"},
	{Name: "슬픔이", Icon: "😢", Color: "#6C9BCF"},
	{Name: "우울이", Icon: "😔", Color: "#7D7C9C"},
	{Name: "지루미", Icon: "😑", Color: "#A5A5A5"},
	{Name: "버럭이", Icon: "😠", Color: "#F16767"},
	{Name: "짜증이", Icon: "😤", Color: "#E76161"},
	{Name: "무서미", Icon: "😨", Color: "#9376E0"},
	{Name: "추억이", Icon: "🥹", Color: "#C69774"},
	{Name: "설렘이", Icon: "🥰", Color: "#FF8FB1"},
	{Name: "평온이", Icon: "😌", Color: "#98D8AA"},
	{Name: "걱정이", Icon: "😟", Color: "#8EACCD"},
	{Name: "감사미", Icon: "🙏", Color: "#F9B572"},
	{Name: "외로미", Icon: "🥺", Color: "#A7BCB9"},
	{Name: "놀람이", Icon: "😲", Color: "#FFE569"},
	{Name: "당황이", Icon: "😳", Color: "#FF9B9B"},
	{Name: "부끄미", Icon: "☺️", Color: "#FFC6AC"},
	{Name: "희망이", Icon: "🌟", Color: "#7DCE13"},
}
