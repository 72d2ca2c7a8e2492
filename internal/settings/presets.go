package settings

import (
	"fmt"
	"sort"
	"strings"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
)

const profilePrefix = "profile:"

// Preset 是内置的命名默认配置
type Preset struct {
	Name       string
	Identifier string
	Build      func() MixerSettings
}

var presets = map[string]Preset{}

func registerPreset(name string, build func(s *MixerSettings)) {
	id := profilePrefix + strings.ToLower(name)
	presets[id] = Preset{
		Name:       name,
		Identifier: id,
		Build: func() MixerSettings {
			s := CreateDefault()
			build(&s)
			s.Resize(s.ChannelCount, MaxChannels)
			return s
		},
	}
}

func init() {
	registerPreset("Gaming", func(s *MixerSettings) {
		s.ChannelCount = 4
		s.Deadzone = 4
		s.AccentColorArgb = argb(214, 72, 72)
	})
	registerPreset("Streaming", func(s *MixerSettings) {
		s.ChannelCount = 6
		s.Deadzone = 8
		s.AccentColorArgb = argb(145, 70, 255)
	})
	registerPreset("Office", func(s *MixerSettings) {
		s.ChannelCount = 3
		s.Deadzone = 12
		s.AccentColorArgb = argb(72, 160, 120)
	})
}

// Presets 返回按名称排序的内置预设
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PresetByIdentifier 查找 profile:<name> 对应的预设
func PresetByIdentifier(id string) (Preset, error) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Preset{}, errors.NewCommonEdgeX(errors.KindEntityDoesNotExist,
			fmt.Sprintf("unknown preset %q", id), nil)
	}
	return p, nil
}

// IdentifierKind 区分内置预设和文件路径
type IdentifierKind int

const (
	IdentifierProfile IdentifierKind = iota
	IdentifierFile
)

// Identifier 是“上次使用的配置”标识：profile:<name> 或配置文件路径
type Identifier struct {
	Kind  IdentifierKind
	Value string // 预设名或文件路径
}

func (id Identifier) String() string {
	if id.Kind == IdentifierProfile {
		return profilePrefix + id.Value
	}
	return id.Value
}

// ParseIdentifier 解析配置标识
func ParseIdentifier(s string) (Identifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Identifier{}, errors.NewCommonEdgeX(errors.KindContractInvalid, "empty configuration identifier", nil)
	}
	if strings.HasPrefix(strings.ToLower(s), profilePrefix) {
		name := strings.ToLower(strings.TrimSpace(s[len(profilePrefix):]))
		if name == "" {
			return Identifier{}, errors.NewCommonEdgeX(errors.KindContractInvalid,
				fmt.Sprintf("configuration identifier %q has no profile name", s), nil)
		}
		return Identifier{Kind: IdentifierProfile, Value: name}, nil
	}
	return Identifier{Kind: IdentifierFile, Value: s}, nil
}
