package domain

// TreeVariables lists the tree schema in output column order.
var TreeVariables = []string{
	"INVENTORY_ID", "PLOT_ID", "TREE_ID",
	"number_of_trees", "specie", "quality", "shape", "special_param", "remarks",
	"age_130", "social_class", "tree_age", "coord_x", "coord_y",
	"expan", "dbh_1", "dbh_2", "dbh", "stump_h", "height",
	"bark_1", "bark_2", "bark", "normal_circumference", "hd_ratio",
	"basal_area", "bal", "ba_ha",
	"cr", "lcw", "hcb", "hlcw",
	"vol", "bole_vol", "bark_vol", "firewood_vol", "vol_ha",
	"wsw", "wsb", "w_cork", "wthickb", "wstb", "wb2_7", "wb2_t", "wthinb",
	"wb05", "wl", "wtbl", "wbl0_7", "wr", "wt",
	"unwinding", "veneer", "saw_big", "saw_small", "saw_canter", "post", "stake", "chips",
	"dbh_oc", "h_uncork", "nb", "cork_cycle",
	"status",
}

var treeFloatFields = map[string]func(*Tree) *float64{
	"number_of_trees":      func(t *Tree) *float64 { return &t.NumberOfTrees },
	"specie":               func(t *Tree) *float64 { return &t.Specie },
	"quality":              func(t *Tree) *float64 { return &t.Quality },
	"shape":                func(t *Tree) *float64 { return &t.Shape },
	"special_param":        func(t *Tree) *float64 { return &t.SpecialParam },
	"remarks":              func(t *Tree) *float64 { return &t.Remarks },
	"age_130":              func(t *Tree) *float64 { return &t.Age130 },
	"social_class":         func(t *Tree) *float64 { return &t.SocialClass },
	"tree_age":             func(t *Tree) *float64 { return &t.TreeAge },
	"coord_x":              func(t *Tree) *float64 { return &t.CoordX },
	"coord_y":              func(t *Tree) *float64 { return &t.CoordY },
	"expan":                func(t *Tree) *float64 { return &t.Expan },
	"dbh_1":                func(t *Tree) *float64 { return &t.DBH1 },
	"dbh_2":                func(t *Tree) *float64 { return &t.DBH2 },
	"dbh":                  func(t *Tree) *float64 { return &t.DBH },
	"stump_h":              func(t *Tree) *float64 { return &t.StumpH },
	"height":               func(t *Tree) *float64 { return &t.Height },
	"bark_1":               func(t *Tree) *float64 { return &t.Bark1 },
	"bark_2":               func(t *Tree) *float64 { return &t.Bark2 },
	"bark":                 func(t *Tree) *float64 { return &t.Bark },
	"normal_circumference": func(t *Tree) *float64 { return &t.NormalCircumference },
	"hd_ratio":             func(t *Tree) *float64 { return &t.HDRatio },
	"basal_area":           func(t *Tree) *float64 { return &t.BasalArea },
	"bal":                  func(t *Tree) *float64 { return &t.BAL },
	"ba_ha":                func(t *Tree) *float64 { return &t.BAHa },
	"cr":                   func(t *Tree) *float64 { return &t.CR },
	"lcw":                  func(t *Tree) *float64 { return &t.LCW },
	"hcb":                  func(t *Tree) *float64 { return &t.HCB },
	"hlcw":                 func(t *Tree) *float64 { return &t.HLCW },
	"vol":                  func(t *Tree) *float64 { return &t.Vol },
	"bole_vol":             func(t *Tree) *float64 { return &t.BoleVol },
	"bark_vol":             func(t *Tree) *float64 { return &t.BarkVol },
	"firewood_vol":         func(t *Tree) *float64 { return &t.FirewoodVol },
	"vol_ha":               func(t *Tree) *float64 { return &t.VolHa },
	"wsw":                  func(t *Tree) *float64 { return &t.WSW },
	"wsb":                  func(t *Tree) *float64 { return &t.WSB },
	"w_cork":               func(t *Tree) *float64 { return &t.WCork },
	"wthickb":              func(t *Tree) *float64 { return &t.WThickB },
	"wstb":                 func(t *Tree) *float64 { return &t.WSTB },
	"wb2_7":                func(t *Tree) *float64 { return &t.WB27 },
	"wb2_t":                func(t *Tree) *float64 { return &t.WB2T },
	"wthinb":               func(t *Tree) *float64 { return &t.WThinB },
	"wb05":                 func(t *Tree) *float64 { return &t.WB05 },
	"wl":                   func(t *Tree) *float64 { return &t.WL },
	"wtbl":                 func(t *Tree) *float64 { return &t.WTBL },
	"wbl0_7":               func(t *Tree) *float64 { return &t.WBL07 },
	"wr":                   func(t *Tree) *float64 { return &t.WR },
	"wt":                   func(t *Tree) *float64 { return &t.WT },
	"unwinding":            func(t *Tree) *float64 { return &t.Unwinding },
	"veneer":               func(t *Tree) *float64 { return &t.Veneer },
	"saw_big":              func(t *Tree) *float64 { return &t.SawBig },
	"saw_small":            func(t *Tree) *float64 { return &t.SawSmall },
	"saw_canter":           func(t *Tree) *float64 { return &t.SawCanter },
	"post":                 func(t *Tree) *float64 { return &t.Post },
	"stake":                func(t *Tree) *float64 { return &t.Stake },
	"chips":                func(t *Tree) *float64 { return &t.Chips },
	"dbh_oc":               func(t *Tree) *float64 { return &t.DBHOC },
	"h_uncork":             func(t *Tree) *float64 { return &t.HUncork },
	"nb":                   func(t *Tree) *float64 { return &t.NB },
	"cork_cycle":           func(t *Tree) *float64 { return &t.CorkCycle },
}

// IsTreeField reports whether name belongs to the tree schema.
func IsTreeField(name string) bool {
	switch name {
	case "INVENTORY_ID", "PLOT_ID", "TREE_ID", "status":
		return true
	}
	_, ok := treeFloatFields[name]
	return ok
}

// Field returns a tree field for tabular output: float64 for numeric fields,
// string for status.
func (t *Tree) Field(name string) (any, error) {
	if name == "status" {
		return string(t.Status), nil
	}
	return t.Value(name)
}
