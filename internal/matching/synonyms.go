package matching

// synonyms maps an ingredient to culinary variants and Danish retail names.
var synonyms = map[string][]string{
	"capsicum":     {"bell pepper", "pepper", "paprika"},
	"bell pepper":  {"capsicum", "pepper", "paprika"},
	"aubergine":    {"eggplant"},
	"eggplant":     {"aubergine"},
	"courgette":    {"zucchini"},
	"zucchini":     {"courgette"},
	"coriander":    {"cilantro"},
	"cilantro":     {"coriander"},
	"rocket":       {"arugula"},
	"arugula":      {"rocket"},
	"spring onion": {"scallion", "green onion"},
	"scallion":     {"spring onion", "green onion"},
	"green onion":  {"spring onion", "scallion"},

	"minced beef":    {"ground beef", "beef mince"},
	"ground beef":    {"minced beef", "beef mince"},
	"chicken breast": {"chicken fillet"},
	"prawns":         {"shrimp"},
	"shrimp":         {"prawns"},

	"double cream": {"heavy cream", "whipping cream"},
	"heavy cream":  {"double cream", "whipping cream"},
	"single cream": {"light cream"},
	"caster sugar": {"superfine sugar", "fine sugar"},
	"icing sugar":  {"powdered sugar", "confectioners sugar"},

	"plain flour":         {"all-purpose flour", "flour"},
	"all-purpose flour":   {"plain flour", "flour"},
	"self-raising flour":  {"self-rising flour"},
	"bicarbonate of soda": {"baking soda"},
	"baking soda":         {"bicarbonate of soda"},

	"milk":    {"mælk"},
	"cheese":  {"ost"},
	"bread":   {"brød"},
	"butter":  {"smør"},
	"egg":     {"æg"},
	"chicken": {"kylling"},
	"beef":    {"oksekød"},
	"pork":    {"svinekød"},
	"fish":    {"fisk"},
	"potato":  {"kartoffel", "kartofler"},
	"tomato":  {"tomat", "tomater"},
	"onion":   {"løg"},
	"garlic":  {"hvidløg"},
	"carrot":  {"gulerod", "gulerødder"},
	"apple":   {"æble", "æbler"},
	"banana":  {"banan", "bananer"},
	"orange":  {"appelsin", "appelsiner"},
	"rice":    {"ris"},
	"pasta":   {"pasta"},
	"oil":     {"olie"},
	"salt":    {"salt"},
	"pepper":  {"peber"},
	"sugar":   {"sukker"},
	"flour":   {"mel"},
	"cream":   {"fløde"},
	"yogurt":  {"yoghurt"},
}

// Synonyms returns name followed by its direct synonyms and every entry that
// lists name as a synonym, without duplicates.
func Synonyms(name string) []string {
	out := []string{name}
	seen := map[string]bool{name: true}
	add := func(terms ...string) {
		for _, t := range terms {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}

	add(synonyms[name]...)
	for key, values := range synonyms {
		for _, v := range values {
			if v == name {
				add(key)
				add(values...)
				break
			}
		}
	}
	return out
}
