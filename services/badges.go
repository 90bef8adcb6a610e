package services

// Badge is a static catalog entry. Earned badges are derived on read and never stored.
type Badge struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// BadgeStatus pairs a catalog badge with whether the user currently holds it.
type BadgeStatus struct {
	Badge
	Earned bool `json:"earned"`
}

// Catalog lists every badge in display order.
var Catalog = []Badge{
	{ID: "b1", Name: "7-Day Streak", Icon: "🔥"},
	{ID: "b2", Name: "First Chapter", Icon: "📖"},
	{ID: "b3", Name: "Faithful Morning", Icon: "☀️"},
	{ID: "b4", Name: "Gospel Explorer", Icon: "🕊️"},
	{ID: "b5", Name: "30-Day Consistency", Icon: "🏆"},
	{ID: "b7", Name: "Leadership Mindset", Icon: "🧠"},
	{ID: "b8", Name: "Community Pillar", Icon: "🏛️"},
}

// EvaluateBadges returns the ids of every badge the inputs qualify for, in catalog order.
// Thresholds are inclusive.
func EvaluateBadges(streak, pagesRead, xpTotal int) []string {
	return EvaluateReader(streak, pagesRead, 0, xpTotal)
}

// EvaluateReader is EvaluateBadges for a reader with both page and chapter plans.
// Any chapter counts toward First Chapter; Gospel Explorer counts pages only.
func EvaluateReader(streak, pagesRead, chaptersRead, xpTotal int) []string {
	earned := map[string]bool{
		"b3": streak >= 3,
		"b1": streak >= 7,
		"b5": streak >= 30,
		"b2": pagesRead > 0 || chaptersRead > 0,
		"b4": pagesRead >= 50,
		"b7": xpTotal >= 500,
	}
	ids := make([]string, 0, len(earned))
	for _, b := range Catalog {
		if earned[b.ID] {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// CatalogStatus marks which catalog badges appear in earned.
func CatalogStatus(earned []string) []BadgeStatus {
	set := make(map[string]bool, len(earned))
	for _, id := range earned {
		set[id] = true
	}
	out := make([]BadgeStatus, 0, len(Catalog))
	for _, b := range Catalog {
		out = append(out, BadgeStatus{Badge: b, Earned: set[b.ID]})
	}
	return out
}
