package database

import (
	"github.com/tidwall/gjson"

	"github.com/safing/dbdriver/database/query"
)

type Agent struct {
	ID         int    `json:"id"`
	ExternalID int    `json:"externalId,omitempty"`
	Handle     string `json:"handle,omitempty"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Runs       int    `json:"runs"`
}

func (a *Agent) PrimaryKey() string {
	if a.ID == 0 {
		return ""
	}
	return FormatKey(a.ID)
}

func (a *Agent) AssignSequence(seq uint64) {
	a.ID = int(seq)
}

func (a *Agent) Apply(_ *Context, change Change) {
	ac, ok := change.(*agentChange)
	if !ok {
		return
	}
	a.Name = ac.name
	if ac.status != "" {
		a.Status = ac.status
	}
	if ac.externalID != 0 {
		a.ExternalID = ac.externalID
	}
	if ac.handle != "" {
		a.Handle = ac.handle
	}
}

func (a *Agent) UniqueFields() map[string]interface{} {
	if a.ExternalID == 0 {
		return nil
	}
	return map[string]interface{}{
		"externalId": a.ExternalID,
	}
}

type agentChange struct {
	ChangeBase

	id         int
	externalID int
	handle     string
	name       string
	status     string
	valid      bool
}

func newAgentChange(payload string) *agentChange {
	parsed := gjson.Parse(payload)
	return &agentChange{
		ChangeBase: NewChangeBase(parsed),
		id:         int(parsed.Get("id").Int()),
		externalID: int(parsed.Get("externalId").Int()),
		handle:     parsed.Get("handle").String(),
		name:       parsed.Get("name").String(),
		status:     parsed.Get("status").String(),
		valid:      parsed.Get("name").Exists(),
	}
}

func (ac *agentChange) IsValid() bool {
	return ac.valid
}

func (ac *agentChange) TargetType() *RecordType {
	return TypeOf[Agent]()
}

func (ac *agentChange) PrimaryValue() int {
	return ac.id
}

func (ac *agentChange) IntegerKey() *MainKey[int] {
	if ac.externalID == 0 {
		return nil
	}
	return &MainKey[int]{Key: "externalId", Value: ac.externalID}
}

func (ac *agentChange) StringKey() *MainKey[string] {
	if ac.handle == "" {
		return nil
	}
	return &MainKey[string]{Key: "handle", Value: ac.handle}
}

type Chat struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

func (ch *Chat) PrimaryKey() string {
	if ch.ID == 0 {
		return ""
	}
	return FormatKey(ch.ID)
}

func (ch *Chat) AssignSequence(seq uint64) {
	ch.ID = int(seq)
}

func (ch *Chat) RecursiveDelete(c *Context) {
	for _, m := range Objects[Message](c, Where(query.Where("chatId", query.Equals, ch.ID))) {
		SimpleDelete(c, m)
	}
	SimpleDelete(c, ch)
}

type Message struct {
	ID     int    `json:"id"`
	ChatID int    `json:"chatId"`
	Text   string `json:"text"`
}

func (m *Message) PrimaryKey() string {
	if m.ID == 0 {
		return ""
	}
	return FormatKey(m.ID)
}

func (m *Message) AssignSequence(seq uint64) {
	m.ID = int(seq)
}

// Setting has a string key and no sequence.
type Setting struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (s *Setting) PrimaryKey() string {
	return s.Name
}

func (s *Setting) TypeName() string {
	return "settings"
}
