package types

const (
	WorkItemTypeDone     = "done"
	WorkItemTypeProgress = "progress"
	WorkItemTypeTemp     = "temp"
	WorkItemTypeAssist   = "assist"
)

var WorkItemTypes = []string{WorkItemTypeDone, WorkItemTypeProgress, WorkItemTypeTemp, WorkItemTypeAssist}

type WorkItem struct {
	ID              int64    `json:"id"`
	CreatorID       int64    `json:"creatorId"`
	OrgID           int64    `json:"orgId"`
	WorkDate        string   `json:"workDate"`
	Title           string   `json:"title"`
	Type            string   `json:"type"`
	DurationMinutes *int     `json:"durationMinutes"`
	Tags            []string `json:"tags"`
	Detail          *string  `json:"detail"`
	CreatedAt       string   `json:"createdAt"`
	UpdatedAt       string   `json:"updatedAt"`
}

func (w WorkItem) EntityID() int64 { return w.ID }

// VisibleWorkItem is a work item as shown to a viewer, with the creator's name.
type VisibleWorkItem struct {
	WorkItem
	CreatorName *string `json:"creatorName"`
}

type WorkItemPage struct {
	Items  []VisibleWorkItem `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

type TypeCounts struct {
	Done     int `json:"done"`
	Progress int `json:"progress"`
	Temp     int `json:"temp"`
	Assist   int `json:"assist"`
}

func (c *TypeCounts) Add(itemType string) {
	switch itemType {
	case WorkItemTypeDone:
		c.Done++
	case WorkItemTypeProgress:
		c.Progress++
	case WorkItemTypeTemp:
		c.Temp++
	case WorkItemTypeAssist:
		c.Assist++
	}
}

type WeeklyRow struct {
	CreatorID    int64      `json:"creatorId"`
	CreatorName  *string    `json:"creatorName"`
	WorkDate     string     `json:"workDate"`
	ItemCount    int        `json:"itemCount"`
	TotalMinutes int        `json:"totalMinutes"`
	TypeCounts   TypeCounts `json:"typeCounts"`
}

type WeeklyDetailItem struct {
	ID              int64  `json:"id"`
	WorkDate        string `json:"workDate"`
	Title           string `json:"title"`
	Type            string `json:"type"`
	DurationMinutes *int   `json:"durationMinutes"`
}

type WeeklyDetail struct {
	CreatorID   int64              `json:"creatorId"`
	CreatorName *string            `json:"creatorName"`
	Items       []WeeklyDetailItem `json:"items"`
}

type WeeklyAggregate struct {
	From    string         `json:"from"`
	To      string         `json:"to"`
	Rows    []WeeklyRow    `json:"rows"`
	Details []WeeklyDetail `json:"details"`
}

type MissingEntry struct {
	UserID       int64    `json:"userId"`
	Name         string   `json:"name"`
	MissingDates []string `json:"missingDates"`
}

type MissingReport struct {
	From               string         `json:"from"`
	To                 string         `json:"to"`
	TotalVisible       int            `json:"totalVisible"`
	TotalActiveVisible int            `json:"totalActiveVisible"`
	Missing            []MissingEntry `json:"missing"`
}
