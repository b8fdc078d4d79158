package types

const DefaultEdgePriority = 100

// ManagerEdge says ManagerID directly manages SubordinateID over
// [StartDate, EndDate].
type ManagerEdge struct {
	ManagerID     int64   `json:"managerId"`
	SubordinateID int64   `json:"subordinateId"`
	StartDate     string  `json:"startDate"`
	EndDate       *string `json:"endDate"`
	Priority      int     `json:"priority"`
}

func (e ManagerEdge) EffectiveInterval() (string, *string) { return e.StartDate, e.EndDate }

type ManagerEdgeFilter struct {
	ManagerID     int64
	SubordinateID int64
}
