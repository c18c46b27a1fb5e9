package parser

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/sets/hashset"
)

type CType struct {
	Name         string
	IsPointer    bool
	PointerDepth int // 2 for char_t **
	IsConst      bool
	IsUnsigned   bool
}

type FunctionParam struct {
	Name string
	Type CType
}

type Function struct {
	Name       string
	ReturnType CType
	Params     []FunctionParam
	IsVariadic bool
}

// Role is the bucket a declaration is filed under inside its object.
type Role int

const (
	RoleStruct Role = iota
	RoleNew
	RoleDel
	RoleDo
	RoleRDo
	RoleGet
	RoleSet
	RoleOther

	numRoles
)

var roleNames = [numRoles]string{"struct", "new", "del", "do", "rdo", "get", "set", "other"}

func (r Role) String() string {
	if r < 0 || r >= numRoles {
		return "unknown"
	}
	return roleNames[r]
}

// Roles lists every role in bucket order.
func Roles() []Role {
	roles := make([]Role, numRoles)
	for i := range roles {
		roles[i] = Role(i)
	}
	return roles
}

type Object struct {
	LongName  string
	ShortName string
	buckets   [numRoles][]string
}

func newObject(longName, shortName string) *Object {
	return &Object{
		LongName:  longName,
		ShortName: shortName,
	}
}

func (o *Object) Bucket(r Role) []string {
	if r < 0 || r >= numRoles {
		return nil
	}
	return o.buckets[r]
}

func (o *Object) add(r Role, decl string) {
	o.buckets[r] = append(o.buckets[r], decl)
}

// Library maps object short names to their records, in discovery order.
type Library struct {
	objects *linkedhashmap.Map
}

func newLibrary() *Library {
	return &Library{objects: linkedhashmap.New()}
}

func (l *Library) put(o *Object) {
	l.objects.Put(o.ShortName, o)
}

func (l *Library) Get(shortName string) (*Object, bool) {
	v, ok := l.objects.Get(shortName)
	if !ok {
		return nil, false
	}
	return v.(*Object), true
}

func (l *Library) Len() int {
	return l.objects.Size()
}

func (l *Library) Names() []string {
	keys := l.objects.Keys()
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.(string))
	}
	return names
}

func (l *Library) Objects() []*Object {
	values := l.objects.Values()
	objs := make([]*Object, 0, len(values))
	for _, v := range values {
		objs = append(objs, v.(*Object))
	}
	return objs
}

// SkipSet holds object short names excluded from the library.
type SkipSet struct {
	names *hashset.Set
}

func NewSkipSet(names ...string) SkipSet {
	set := hashset.New()
	for _, n := range names {
		set.Add(n)
	}
	return SkipSet{names: set}
}

func (s SkipSet) Contains(name string) bool {
	if s.names == nil {
		return false
	}
	return s.names.Contains(name)
}

func (s SkipSet) Len() int {
	if s.names == nil {
		return 0
	}
	return s.names.Size()
}
