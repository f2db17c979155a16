// Attribute lists and their classification.
// Lists are always kept sorted by attribute name. Equal duplicates are
// suppressed; distinct attributes sharing a name keep their insertion
// order among themselves.
package cil

// AttrParamEqual compares two attribute parameters structurally.
// Variable references compare by identity.
func AttrParamEqual(a, b AttrParam) bool {
	switch a := a.(type) {
	case *AInt:
		b, ok := b.(*AInt)
		return ok && a.N == b.N
	case *AStr:
		b, ok := b.(*AStr)
		return ok && a.S == b.S
	case *AVar:
		b, ok := b.(*AVar)
		return ok && a.Vi == b.Vi
	case *ACons:
		b, ok := b.(*ACons)
		return ok && a.Name == b.Name && attrParamsEqual(a.Params, b.Params)
	case *ASizeOf:
		b, ok := b.(*ASizeOf)
		return ok && TypeSigEqual(TypeSig(a.T), TypeSig(b.T))
	case *ASizeOfE:
		b, ok := b.(*ASizeOfE)
		return ok && AttrParamEqual(a.P, b.P)
	case *AUnOp:
		b, ok := b.(*AUnOp)
		return ok && a.Op == b.Op && AttrParamEqual(a.P, b.P)
	case *ABinOp:
		b, ok := b.(*ABinOp)
		return ok && a.Op == b.Op && AttrParamEqual(a.L, b.L) && AttrParamEqual(a.R, b.R)
	}
	return false
}

func attrParamsEqual(a, b []AttrParam) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !AttrParamEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// AttrEqual compares two attributes structurally.
func AttrEqual(a, b Attribute) bool {
	return a.Name == b.Name && attrParamsEqual(a.Params, b.Params)
}

// AddAttribute inserts a into the name-sorted list al. An attribute equal
// to one already present is dropped; a distinct attribute with the same
// name is inserted after the existing ones.
func AddAttribute(a Attribute, al []Attribute) []Attribute {
	i := 0
	for i < len(al) && al[i].Name < a.Name {
		i++
	}
	for i < len(al) && al[i].Name == a.Name {
		if AttrEqual(a, al[i]) {
			return al
		}
		i++
	}
	out := make([]Attribute, 0, len(al)+1)
	out = append(out, al[:i]...)
	out = append(out, a)
	out = append(out, al[i:]...)
	return out
}

// AddAttributes folds AddAttribute over al0, starting from al.
func AddAttributes(al0, al []Attribute) []Attribute {
	if len(al0) == 0 {
		return al
	}
	out := al
	for _, a := range al0 {
		out = AddAttribute(a, out)
	}
	return out
}

// SortAttributes re-establishes the sorted-list invariant on an arbitrary
// attribute list, preserving order among attributes of equal name.
func SortAttributes(al []Attribute) []Attribute {
	var out []Attribute
	for _, a := range al {
		out = AddAttribute(a, out)
	}
	return out
}

// DropAttribute removes every attribute named n.
func DropAttribute(n string, al []Attribute) []Attribute {
	if !HasAttribute(n, al) {
		return al
	}
	out := make([]Attribute, 0, len(al))
	for _, a := range al {
		if a.Name != n {
			out = append(out, a)
		}
	}
	return out
}

// DropAttributes removes every attribute whose name appears in names.
func DropAttributes(names []string, al []Attribute) []Attribute {
	out := al
	for _, n := range names {
		out = DropAttribute(n, out)
	}
	return out
}

// FilterAttributes keeps only the attributes named n.
func FilterAttributes(n string, al []Attribute) []Attribute {
	var out []Attribute
	for _, a := range al {
		if a.Name == n {
			out = append(out, a)
		}
	}
	return out
}

// HasAttribute reports whether an attribute named n is present.
func HasAttribute(n string, al []Attribute) bool {
	for _, a := range al {
		if a.Name == n {
			return true
		}
	}
	return false
}

// AttrClass says where an attribute belongs in a declaration.
type AttrClass int

const (
	// AttrName associates with the name being declared.
	AttrName AttrClass = iota
	// AttrFunType attaches to a function type.
	AttrFunType
	// AttrType attaches to the underlying type.
	AttrType
)

// attrInfo is one registry entry. msvc requests __declspec placement for
// AttrName entries, and placement right before the function name for
// AttrFunType entries.
type attrInfo struct {
	class AttrClass
	msvc  bool
}

// attrRegistry classifies the attributes the printer knows about.
var attrRegistry = map[string]attrInfo{
	"section":                  {AttrName, false},
	"constructor":              {AttrName, false},
	"destructor":               {AttrName, false},
	"unused":                   {AttrName, false},
	"used":                     {AttrName, false},
	"weak":                     {AttrName, false},
	"no_instrument_function":   {AttrName, false},
	"alias":                    {AttrName, false},
	"no_check_memory_usage":    {AttrName, false},
	"exception":                {AttrName, false},
	"model":                    {AttrName, false},
	"aconst":                   {AttrName, false},
	"__asm__":                  {AttrName, false},
	"thread":                   {AttrName, true},
	"naked":                    {AttrName, true},
	"dllimport":                {AttrName, true},
	"dllexport":                {AttrName, true},
	"noreturn":                 {AttrName, true},
	"selectany":                {AttrName, true},
	"allocate":                 {AttrName, true},
	"nothrow":                  {AttrName, true},
	"novtable":                 {AttrName, true},
	"property":                 {AttrName, true},
	"uuid":                     {AttrName, true},
	"format":                   {AttrFunType, false},
	"regparm":                  {AttrFunType, false},
	"longcall":                 {AttrFunType, false},
	"stdcall":                  {AttrFunType, true},
	"cdecl":                    {AttrFunType, true},
	"fastcall":                 {AttrFunType, true},
	"const":                    {AttrType, false},
	"volatile":                 {AttrType, false},
	"restrict":                 {AttrType, false},
	"mode":                     {AttrType, false},
}

// IsMsvcStorageAttr reports whether name is an MSVC storage modifier,
// i.e. a name-class attribute printed via __declspec.
func IsMsvcStorageAttr(name string) bool {
	info, ok := attrRegistry[name]
	return ok && info.class == AttrName && info.msvc
}

// AttrClassOf classifies name, falling back to def for unknown names.
func AttrClassOf(def AttrClass, name string) AttrClass {
	if info, ok := attrRegistry[name]; ok {
		return info.class
	}
	return def
}

// PartitionAttributes splits al into (name, function-type, type) classes,
// classifying unknown names as def.
func PartitionAttributes(def AttrClass, al []Attribute) (an, af, at []Attribute) {
	for _, a := range al {
		switch AttrClassOf(def, a.Name) {
		case AttrName:
			an = AddAttribute(a, an)
		case AttrFunType:
			af = AddAttribute(a, af)
		default:
			at = AddAttribute(a, at)
		}
	}
	return an, af, at
}

// SeparateStorageModifiers rewraps MSVC storage-modifier attributes as
// declspec(<name>(...)) entries. It is the identity unless msvc is set.
func SeparateStorageModifiers(msvc bool, al []Attribute) []Attribute {
	if !msvc {
		return al
	}
	changed := false
	for _, a := range al {
		if IsMsvcStorageAttr(a.Name) {
			changed = true
			break
		}
	}
	if !changed {
		return al
	}
	var out []Attribute
	for _, a := range al {
		if IsMsvcStorageAttr(a.Name) {
			wrapped := Attribute{
				Name:   "declspec",
				Params: []AttrParam{&ACons{Name: a.Name, Params: a.Params}},
			}
			out = AddAttribute(wrapped, out)
		} else {
			out = AddAttribute(a, out)
		}
	}
	return out
}
