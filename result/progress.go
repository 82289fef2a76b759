package result

import "github.com/perfgo/subunit/model"

// ProgressModel tracks hierarchical progress. Each pushed level divides one
// step of the level below it into its own width.
type ProgressModel struct {
	levels []progressLevel
}

type progressLevel struct {
	pos, width int
}

func NewProgressModel() *ProgressModel {
	return &ProgressModel{levels: []progressLevel{{}}}
}

func (m *ProgressModel) top() *progressLevel {
	return &m.levels[len(m.levels)-1]
}

func (m *ProgressModel) Advance() {
	m.top().pos++
}

func (m *ProgressModel) SetWidth(width int) {
	m.top().width = width
}

func (m *ProgressModel) AdjustWidth(offset int) {
	m.top().width += offset
}

func (m *ProgressModel) Push() {
	m.levels = append(m.levels, progressLevel{})
}

// Pop drops the innermost level. The outermost level is never dropped.
func (m *ProgressModel) Pop() {
	if len(m.levels) > 1 {
		m.levels = m.levels[:len(m.levels)-1]
	}
}

func (m *ProgressModel) Pos() int {
	pos := m.levels[0].pos
	for _, l := range m.levels[1:] {
		pos = pos*max(l.width, 1) + l.pos
	}
	return pos
}

func (m *ProgressModel) Width() int {
	width := m.levels[0].width
	for _, l := range m.levels[1:] {
		width *= max(l.width, 1)
	}
	return width
}

// Apply applies a progress directive.
func (m *ProgressModel) Apply(p model.Progress) {
	switch p.Kind {
	case model.ProgressSet:
		m.SetWidth(p.Value)
	case model.ProgressCur:
		m.AdjustWidth(p.Value)
	case model.ProgressPush:
		m.Push()
	case model.ProgressPop:
		m.Pop()
	}
}
