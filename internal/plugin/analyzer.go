package plugin

import (
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
)

// Analyzer turns component files into component records.
type Analyzer struct {
	src    Source
	logger *zap.Logger
}

// NewAnalyzer creates an Analyzer reading through src.
func NewAnalyzer(src Source, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{src: src, logger: logger.Named("analyzer")}
}

func (a *Analyzer) read(kind Kind, p string) (Record, error) {
	rec, err := a.src.Read(p)
	if err != nil {
		return Record{}, &ParseError{Kind: kind, Path: p, Err: err}
	}
	if !rec.HasFrontmatter {
		a.logger.Warn("Component has no frontmatter.", zap.String("kind", string(kind)), zap.String("path", p))
	}
	return rec, nil
}

func (a *Analyzer) describe(kind Kind, p string, fm Frontmatter) (desc string, phrases []string, intents []SemanticIntent) {
	desc = fm.String("description")
	if desc == "" {
		a.logger.Warn("Component has no description.", zap.String("kind", string(kind)), zap.String("path", p))
	}
	phrases = ExtractTriggerPhrases(desc)
	intents = ExtractIntents(phrases)
	if len(phrases) > len(intents) {
		a.logger.Debug("Some trigger phrases yielded no intent.",
			zap.String("path", p),
			zap.Int("phrases", len(phrases)),
			zap.Int("intents", len(intents)))
	}
	return desc, phrases, intents
}

// AnalyzeCommand builds a CommandComponent from the file at p.
func (a *Analyzer) AnalyzeCommand(p, namespace, pluginPrefix string) (CommandComponent, error) {
	rec, err := a.read(KindCommand, p)
	if err != nil {
		return CommandComponent{}, err
	}
	fm := rec.Frontmatter
	name := strings.TrimSuffix(path.Base(p), ".md")
	desc, phrases, intents := a.describe(KindCommand, p, fm)
	hint := fm.String("argument-hint")

	return CommandComponent{
		Name:                   name,
		Path:                   p,
		Namespace:              namespace,
		FullName:               commandFullName(namespace, name),
		PluginPrefix:           pluginPrefix,
		Description:            desc,
		ArgumentHint:           hint,
		Arguments:              ParseArgumentHint(hint),
		AllowedTools:           fm.List("allowed-tools"),
		DisableModelInvocation: fm.Bool("disable-model-invocation"),
		TriggerPhrases:         phrases,
		SemanticIntents:        intents,
	}, nil
}

// AnalyzeCommands analyzes files in order. Files that fail to parse are
// reported in the error list and left out of the result; nothing is
// dropped silently.
func (a *Analyzer) AnalyzeCommands(files []CommandFile, pluginPrefix string) ([]CommandComponent, []*ParseError) {
	out := make([]CommandComponent, 0, len(files))
	var errs []*ParseError
	for _, f := range files {
		cmd, err := a.AnalyzeCommand(f.Path, f.Namespace, pluginPrefix)
		if err != nil {
			errs = append(errs, toParseError(KindCommand, f.Path, err))
			continue
		}
		out = append(out, cmd)
	}
	return out, errs
}

// AnalyzeSkill builds a SkillComponent from skills/<name>/SKILL.md. The
// frontmatter name wins over the directory name.
func (a *Analyzer) AnalyzeSkill(p string) (SkillComponent, error) {
	rec, err := a.read(KindSkill, p)
	if err != nil {
		return SkillComponent{}, err
	}
	fm := rec.Frontmatter
	name := fm.String("name")
	if name == "" {
		name = path.Base(path.Dir(p))
	}
	desc, phrases, intents := a.describe(KindSkill, p, fm)
	return SkillComponent{
		Name:            name,
		Path:            p,
		Description:     desc,
		TriggerPhrases:  phrases,
		SemanticIntents: intents,
		AllowedTools:    fm.List("allowed-tools"),
	}, nil
}

func (a *Analyzer) AnalyzeSkills(paths []string) ([]SkillComponent, []*ParseError) {
	return analyzeAll(paths, KindSkill, a.AnalyzeSkill)
}

// AnalyzeAgent builds an AgentComponent from agents/<name>.md.
func (a *Analyzer) AnalyzeAgent(p string) (AgentComponent, error) {
	rec, err := a.read(KindAgent, p)
	if err != nil {
		return AgentComponent{}, err
	}
	fm := rec.Frontmatter
	name := fm.String("name")
	if name == "" {
		name = strings.TrimSuffix(path.Base(p), ".md")
	}
	desc, phrases, intents := a.describe(KindAgent, p, fm)
	return AgentComponent{
		Name:            name,
		Path:            p,
		Description:     desc,
		Model:           fm.String("model"),
		TriggerPhrases:  phrases,
		SemanticIntents: intents,
		Tools:           fm.List("tools"),
	}, nil
}

func (a *Analyzer) AnalyzeAgents(paths []string) ([]AgentComponent, []*ParseError) {
	return analyzeAll(paths, KindAgent, a.AnalyzeAgent)
}

func analyzeAll[T any](paths []string, kind Kind, fn func(string) (T, error)) ([]T, []*ParseError) {
	out := make([]T, 0, len(paths))
	var errs []*ParseError
	for _, p := range paths {
		c, err := fn(p)
		if err != nil {
			errs = append(errs, toParseError(kind, p, err))
			continue
		}
		out = append(out, c)
	}
	return out, errs
}

func toParseError(kind Kind, p string, err error) *ParseError {
	if pe, ok := AsParseError(err); ok {
		return pe
	}
	return &ParseError{Kind: kind, Path: p, Err: err}
}

// Analysis is the result of analyzing a whole inventory.
type Analysis struct {
	Prefix   string
	Skills   []SkillComponent
	Agents   []AgentComponent
	Commands []CommandComponent
	Errors   []*ParseError
}

// Components returns skills, then agents, then commands.
func (an Analysis) Components() []Component {
	out := make([]Component, 0, len(an.Skills)+len(an.Agents)+len(an.Commands))
	for _, s := range an.Skills {
		out = append(out, s)
	}
	for _, ag := range an.Agents {
		out = append(out, ag)
	}
	for _, c := range an.Commands {
		out = append(out, c)
	}
	return out
}

// Analyze runs every analyzer over inv.
func (a *Analyzer) Analyze(inv Inventory) Analysis {
	an := Analysis{Prefix: inv.Prefix}
	var errs []*ParseError

	var e []*ParseError
	an.Skills, e = a.AnalyzeSkills(inv.Skills)
	errs = append(errs, e...)
	an.Agents, e = a.AnalyzeAgents(inv.Agents)
	errs = append(errs, e...)
	an.Commands, e = a.AnalyzeCommands(inv.Commands, inv.Prefix)
	errs = append(errs, e...)
	an.Errors = errs

	a.logger.Info("Plugin analyzed.",
		zap.String("prefix", inv.Prefix),
		zap.Int("skills", len(an.Skills)),
		zap.Int("agents", len(an.Agents)),
		zap.Int("commands", len(an.Commands)),
		zap.Int("errors", len(errs)))
	return an
}

// String gives a one-line summary for CLI output.
func (an Analysis) String() string {
	return fmt.Sprintf("%d skills, %d agents, %d commands (%d parse errors)",
		len(an.Skills), len(an.Agents), len(an.Commands), len(an.Errors))
}
