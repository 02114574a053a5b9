package feature

import (
	"github.com/perfgo/testgate/identity"
	"github.com/perfgo/testgate/settings"
)

// KnownTests classifies tests as known or new against a frozen registry.
type KnownTests struct {
	Base

	modules map[string]map[string]map[string]struct{}
	count   uint
}

func NewKnownTests(tests settings.KnownTests) *KnownTests {
	k := &KnownTests{modules: make(map[string]map[string]map[string]struct{}, len(tests))}
	for module, suites := range tests {
		mod := make(map[string]map[string]struct{}, len(suites))
		for suite, names := range suites {
			set := make(map[string]struct{}, len(names))
			for _, name := range names {
				set[name] = struct{}{}
			}
			k.count += uint(len(set))
			mod[suite] = set
		}
		k.modules[module] = mod
	}
	return k
}

func (k *KnownTests) ID() ID { return IDKnownTests }

// Count is the number of distinct known tests.
func (k *KnownTests) Count() uint { return k.count }

func (k *KnownTests) IsKnown(test, suite, module string) bool {
	_, ok := k.modules[module][suite][test]
	return ok
}

func (k *KnownTests) IsNew(test, suite, module string) bool {
	return !k.IsKnown(test, suite, module)
}

func (k *KnownTests) WillStart(run identity.TestRun, _ RunInfo) {
	if k.IsNew(run.Name(), run.Suite().Name(), run.Module().Name()) {
		run.SetTag(TagIsNew, true)
	}
}
