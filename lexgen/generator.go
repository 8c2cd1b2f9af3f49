// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package lexgen

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tapestry-foundation/tapestry/lib/syntax"
)

// Diagnostic records a schema construct the generator could not
// fully express. Generation continues; the affected field falls
// back to data.Value.
type Diagnostic struct {
	// Path locates the construct, e.g. "app.bsky.feed.post#main.embed".
	Path    string
	Message string
}

// Generator emits Go bindings for a corpus.
type Generator struct {
	Corpus *Corpus
	// PackagePrefix is the import path under which generated
	// packages live, e.g. "example.com/mod/api".
	PackagePrefix string
	// NameOverrides maps "nsid" or "nsid#def" references to Go type
	// names, for the places where the derivation rule produces an
	// awkward name.
	NameOverrides map[string]string
	// Diagnostics accumulates everything the generator had to paper
	// over. Inspect it after Generate.
	Diagnostics []Diagnostic
}

func (g *Generator) diag(path, format string, args ...any) {
	g.Diagnostics = append(g.Diagnostics, Diagnostic{Path: path, Message: fmt.Sprintf(format, args...)})
}

// typeName resolves the Go name for a document def, honoring
// overrides.
func (g *Generator) typeName(id syntax.NSID, defName string) string {
	key := id.String()
	if defName != "main" {
		key += "#" + defName
	}
	if name, ok := g.NameOverrides[key]; ok {
		return name
	}
	return defTypeName(id, defName)
}

// Generate writes one package directory per second-level namespace
// under outDir, one file per third-level group.
func (g *Generator) Generate(outDir string) error {
	type groupKey struct{ pkg, file string }
	groups := map[groupKey][]*Document{}
	for _, doc := range g.Corpus.Documents() {
		pkg, file := packageFor(doc.ID)
		key := groupKey{pkg, file}
		groups[key] = append(groups[key], doc)
	}
	keys := make([]groupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].pkg != keys[j].pkg {
			return keys[i].pkg < keys[j].pkg
		}
		return keys[i].file < keys[j].file
	})
	for _, key := range keys {
		source, err := g.generateFile(key.pkg, key.file, groups[key])
		if err != nil {
			return err
		}
		dir := filepath.Join(outDir, key.pkg)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		path := filepath.Join(dir, key.file+".go")
		if err := os.WriteFile(path, source, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// GenerateFile renders the bindings for one namespace group without
// touching the filesystem.
func (g *Generator) GenerateFile(pkg, file string, docs []*Document) ([]byte, error) {
	return g.generateFile(pkg, file, docs)
}

func (g *Generator) generateFile(pkg, file string, docs []*Document) ([]byte, error) {
	b := &fileBuilder{generator: g, pkg: pkg, imports: map[string]bool{}}
	for _, doc := range docs {
		b.emitDocument(doc)
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "// Code generated by tapestry lexgen from %s. DO NOT EDIT.\n\n", groupLabel(docs))
	fmt.Fprintf(&out, "package %s\n\n", pkg)
	if len(b.imports) > 0 {
		fmt.Fprintf(&out, "import (\n")
		paths := make([]string, 0, len(b.imports))
		for path := range b.imports {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			fmt.Fprintf(&out, "\t%q\n", path)
		}
		fmt.Fprintf(&out, ")\n\n")
	}
	out.Write(b.buf.Bytes())

	source, err := format.Source(out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("lexgen: format %s/%s.go: %w (generator bug)", pkg, file, err)
	}
	return source, nil
}

// groupLabel names the lexicon group a file was generated from.
func groupLabel(docs []*Document) string {
	if len(docs) == 0 {
		return "empty group"
	}
	id := docs[0].ID.String()
	segments := strings.Split(id, ".")
	if len(segments) < 3 {
		return id
	}
	return strings.Join(segments[:3], ".")
}

// fileBuilder accumulates declarations and imports for one output
// file.
type fileBuilder struct {
	generator *Generator
	pkg       string
	buf       bytes.Buffer
	// trailing collects inline type declarations (unions, nested
	// objects) discovered while a parent declaration is still being
	// written; it is flushed after each def so declarations never
	// interleave.
	trailing bytes.Buffer
	imports  map[string]bool
}

func (b *fileBuilder) use(path string) {
	b.imports[path] = true
}

func (b *fileBuilder) printf(format string, args ...any) {
	fmt.Fprintf(&b.buf, format, args...)
}

// deferEmit renders a declaration into a child builder and queues
// it after the declaration currently being written.
func (b *fileBuilder) deferEmit(emit func(*fileBuilder)) {
	child := &fileBuilder{generator: b.generator, pkg: b.pkg, imports: b.imports}
	emit(child)
	b.trailing.Write(child.buf.Bytes())
	b.trailing.Write(child.trailing.Bytes())
}

func (b *fileBuilder) emitDocument(doc *Document) {
	names := make([]string, 0, len(doc.Defs))
	for name := range doc.Defs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		// main first, the rest alphabetical.
		if names[i] == "main" {
			return true
		}
		if names[j] == "main" {
			return false
		}
		return names[i] < names[j]
	})
	for _, defName := range names {
		b.emitDef(doc, defName, doc.Defs[defName])
		b.buf.Write(b.trailing.Bytes())
		b.trailing.Reset()
	}
}

func (b *fileBuilder) emitDef(doc *Document, defName string, def *TypeSchema) {
	path := doc.ID.String() + "#" + defName
	name := b.generator.typeName(doc.ID, defName)
	switch def.Type {
	case "record":
		b.emitRecord(doc, defName, name, def)
	case "object":
		b.emitObject(doc, path, name, def)
	case "string":
		b.emitStringDef(doc, path, name, def)
	case "token":
		b.printf("// %s is the %s token.\nconst %s = %q\n\n", name, path, name, path)
	case "array":
		elem := b.fieldType(doc, path, name+"Elem", def.Items, true)
		b.printf("// %s is %s.\ntype %s []%s\n\n", name, path, name, elem)
	case "union":
		b.emitUnion(doc, path, name, def.Refs)
	case "query", "procedure":
		b.emitOperation(doc, defName, def)
	case "subscription":
		b.emitSubscription(doc, defName, def)
	default:
		b.generator.diag(path, "unsupported def type %q", def.Type)
	}
}

func (b *fileBuilder) emitComment(description, fallback string) {
	text := description
	if text == "" {
		text = fallback
	}
	for _, line := range wrapComment(text) {
		b.printf("// %s\n", line)
	}
}

func wrapComment(text string) []string {
	words := strings.Fields(text)
	var lines []string
	var line string
	for _, word := range words {
		if line == "" {
			line = word
			continue
		}
		if len(line)+1+len(word) > 72 {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

func (b *fileBuilder) emitRecord(doc *Document, defName, name string, def *TypeSchema) {
	path := doc.ID.String() + "#" + defName
	if def.Record == nil || def.Record.Type != "object" {
		b.generator.diag(path, "record def without object schema")
		return
	}
	b.emitComment(def.Description, fmt.Sprintf("%s is the %s record.", name, doc.ID))
	b.printf("type %s struct {\n", name)
	props := b.emitFields(doc, path, name, def.Record)
	b.printf("\n\t// Extra holds fields this binding does not declare.\n")
	b.printf("\tExtra map[string]json.RawMessage `json:\"-\"`\n")
	b.printf("}\n\n")
	b.use("encoding/json")
	b.use(b.generator.PackagePrefix)

	b.printf("// LexiconTypeID implements api.Record.\n")
	b.printf("func (%s) LexiconTypeID() string { return %q }\n\n", name, doc.ID.String())

	varName := lowerFirst(name) + "KnownKeys"
	b.printf("var %s = []string{", varName)
	for i, prop := range props {
		if i > 0 {
			b.printf(", ")
		}
		b.printf("%q", prop)
	}
	b.printf("}\n\n")

	recv := strings.ToLower(name[:1])
	b.printf("func (%s %s) MarshalJSON() ([]byte, error) {\n", recv, name)
	b.printf("\ttype shadow %s\n", name)
	b.printf("\treturn api.EncodeWithExtra(shadow(%s), %s.LexiconTypeID(), %s.Extra)\n", recv, recv, recv)
	b.printf("}\n\n")
	b.printf("func (%s *%s) UnmarshalJSON(raw []byte) error {\n", recv, name)
	b.printf("\ttype shadow %s\n", name)
	b.printf("\tif err := json.Unmarshal(raw, (*shadow)(%s)); err != nil {\n\t\treturn err\n\t}\n", recv)
	b.printf("\treturn api.DecodeExtra(raw, &%s.Extra, %s...)\n", recv, varName)
	b.printf("}\n\n")
	b.printf("func init() {\n")
	b.printf("\tapi.RegisterRecordType(%q, func() api.Record { return new(%s) })\n", doc.ID.String(), name)
	b.printf("}\n\n")
}

func (b *fileBuilder) emitObject(doc *Document, path, name string, def *TypeSchema) {
	b.emitComment(def.Description, fmt.Sprintf("%s is %s.", name, path))
	b.printf("type %s struct {\n", name)
	b.emitFields(doc, path, name, def)
	b.printf("}\n\n")
}

// emitFields writes struct fields for an object schema and returns
// the property names in emission order.
func (b *fileBuilder) emitFields(doc *Document, path, parent string, def *TypeSchema) []string {
	required := map[string]bool{}
	for _, prop := range def.Required {
		required[prop] = true
	}
	nullable := map[string]bool{}
	for _, prop := range def.Nullable {
		nullable[prop] = true
	}
	props := make([]string, 0, len(def.Properties))
	for prop := range def.Properties {
		props = append(props, prop)
	}
	sort.Strings(props)
	for _, prop := range props {
		schema := def.Properties[prop]
		fieldPath := path + "." + prop
		goType := b.fieldType(doc, fieldPath, parent+fieldName(prop), schema, required[prop] && !nullable[prop])
		tag := prop
		if !required[prop] {
			tag += ",omitempty"
		}
		if schema.Description != "" {
			for _, line := range wrapComment(schema.Description) {
				b.printf("\t// %s\n", line)
			}
		}
		b.printf("\t%s %s `json:%q`\n", fieldName(prop), goType, tag)
	}
	return props
}

// fieldType maps a schema node to a Go type expression, emitting
// any named types (inline unions, enums) it needs.
func (b *fileBuilder) fieldType(doc *Document, path, inlineName string, schema *TypeSchema, required bool) string {
	if schema == nil {
		b.generator.diag(path, "missing schema")
		b.use(b.generator.dataImport())
		return "data.Value"
	}
	optional := func(base string) string {
		if required {
			return base
		}
		return "*" + base
	}
	switch schema.Type {
	case "string":
		return optional("string")
	case "integer":
		return optional("int64")
	case "boolean":
		return optional("bool")
	case "bytes":
		b.use(b.generator.dataImport())
		return "data.Bytes"
	case "cid-link":
		b.use(b.generator.dataImport())
		return optional("data.CIDLink")
	case "blob":
		b.use(b.generator.dataImport())
		return optional("data.Blob")
	case "unknown":
		b.use(b.generator.dataImport())
		return optional("data.Value")
	case "array":
		return "[]" + b.fieldType(doc, path+"[]", inlineName+"Elem", schema.Items, true)
	case "ref":
		return b.refType(doc, path, schema.Ref, required)
	case "union":
		b.deferEmit(func(c *fileBuilder) { c.emitUnion(doc, path, inlineName, schema.Refs) })
		return optional(inlineName)
	case "object":
		b.deferEmit(func(c *fileBuilder) { c.emitObject(doc, path, inlineName, schema) })
		return optional(inlineName)
	default:
		b.generator.diag(path, "unsupported field type %q", schema.Type)
		b.use(b.generator.dataImport())
		return "data.Value"
	}
}

func (g *Generator) dataImport() string {
	return "github.com/tapestry-foundation/tapestry/lib/data"
}

func (g *Generator) xrpcImport() string {
	return "github.com/tapestry-foundation/tapestry/xrpc"
}

// refType resolves a reference to a Go type name, qualified when
// the target lives in a different generated package. Unresolvable
// references degrade to data.Value.
func (b *fileBuilder) refType(doc *Document, path, ref string, required bool) string {
	targetDoc, targetDef, err := b.generator.Corpus.Resolve(ref, doc.ID)
	if err != nil {
		b.generator.diag(path, "unresolved ref %q: %v", ref, err)
		b.use(b.generator.dataImport())
		return "data.Value"
	}
	defName := "main"
	if hash := strings.Index(ref, "#"); hash >= 0 {
		defName = ref[hash+1:]
	}
	// Tokens are plain strings on the wire.
	if targetDef.Type == "token" {
		return "string"
	}
	name := b.generator.typeName(targetDoc.ID, defName)
	targetPkg, _ := packageFor(targetDoc.ID)
	scalar := targetDef.Type == "string" || targetDef.Type == "integer" || targetDef.Type == "boolean"
	qualified := name
	if targetPkg != b.pkg {
		b.use(b.generator.PackagePrefix + "/" + targetPkg)
		qualified = targetPkg + "." + name
	}
	if !required && (scalar || targetDef.Type == "object" || targetDef.Type == "record") {
		return "*" + qualified
	}
	return qualified
}

// emitUnion writes a tagged union struct with one pointer field per
// variant and an Unknown fallback that survives re-encoding.
func (b *fileBuilder) emitUnion(doc *Document, path, name string, refs []string) {
	type variant struct {
		field  string
		goType string
		typeID string
	}
	variants := make([]variant, 0, len(refs))
	for _, ref := range refs {
		targetDoc, _, err := b.generator.Corpus.Resolve(ref, doc.ID)
		if err != nil {
			b.generator.diag(path, "union variant %q: %v", ref, err)
			continue
		}
		defName := "main"
		typeID := ref
		if hash := strings.Index(ref, "#"); hash == 0 {
			defName = ref[1:]
			typeID = doc.ID.String() + ref
		} else if hash > 0 {
			defName = ref[hash+1:]
		}
		field := pascalCase(defName)
		if defName == "main" {
			field = pascalCase(targetDoc.ID.Name())
		}
		variants = append(variants, variant{
			field:  field,
			goType: strings.TrimPrefix(b.refType(doc, path, ref, true), "*"),
			typeID: typeID,
		})
	}

	b.use("encoding/json")
	b.use("fmt")
	b.use(b.generator.dataImport())
	b.use(b.generator.PackagePrefix)

	b.printf("// %s is the union at %s. Exactly one variant field is\n", name, path)
	b.printf("// set; unrecognized variants land in Unknown and survive\n// re-encoding.\n")
	b.printf("type %s struct {\n", name)
	for _, v := range variants {
		b.printf("\t%s *%s\n", v.field, v.goType)
	}
	b.printf("\tUnknown *data.Value\n")
	b.printf("}\n\n")

	recv := strings.ToLower(name[:1])
	b.printf("func (%s %s) MarshalJSON() ([]byte, error) {\n", recv, name)
	b.printf("\tswitch {\n")
	for _, v := range variants {
		b.printf("\tcase %s.%s != nil:\n", recv, v.field)
		b.printf("\t\treturn api.EncodeWithExtra(%s.%s, %q, nil)\n", recv, v.field, v.typeID)
	}
	b.printf("\tcase %s.Unknown != nil:\n", recv)
	b.printf("\t\treturn data.MarshalJSON(*%s.Unknown)\n", recv)
	b.printf("\t}\n")
	b.printf("\treturn nil, fmt.Errorf(\"empty %s union\")\n", name)
	b.printf("}\n\n")

	b.printf("func (%s *%s) UnmarshalJSON(raw []byte) error {\n", recv, name)
	b.printf("\tvar probe struct {\n\t\tType string `json:\"$type\"`\n\t}\n")
	b.printf("\tif err := json.Unmarshal(raw, &probe); err != nil {\n\t\treturn err\n\t}\n")
	b.printf("\t*%s = %s{}\n", recv, name)
	b.printf("\tswitch probe.Type {\n")
	for _, v := range variants {
		b.printf("\tcase %q:\n", v.typeID)
		b.printf("\t\t%s.%s = new(%s)\n", recv, v.field, v.goType)
		b.printf("\t\treturn json.Unmarshal(raw, %s.%s)\n", recv, v.field)
	}
	b.printf("\tdefault:\n")
	b.printf("\t\tvalue, err := data.UnmarshalJSON(raw)\n")
	b.printf("\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n")
	b.printf("\t\t%s.Unknown = &value\n", recv)
	b.printf("\t\treturn nil\n")
	b.printf("\t}\n")
	b.printf("}\n\n")
}

// emitStringDef writes a named string type with constants for its
// known values. Free-form values still pass through.
func (b *fileBuilder) emitStringDef(doc *Document, path, name string, def *TypeSchema) {
	values := def.KnownValues
	if len(values) == 0 {
		values = def.Enum
	}
	b.emitComment(def.Description, fmt.Sprintf("%s is %s.", name, path))
	b.printf("type %s string\n\n", name)
	if len(values) == 0 {
		return
	}
	b.printf("const (\n")
	for _, value := range values {
		b.printf("\t%s%s %s = %q\n", name, pascalCase(strings.TrimLeft(value, "!")), name, value)
	}
	b.printf(")\n\n")
}

func (b *fileBuilder) emitOperation(doc *Document, defName string, def *TypeSchema) {
	if defName != "main" {
		b.generator.diag(doc.ID.String()+"#"+defName, "operation def outside main")
		return
	}
	op := opName(doc.ID)
	nsid := doc.ID.String()
	b.use(b.generator.xrpcImport())

	hasParams := def.Parameters != nil && len(def.Parameters.Properties) > 0
	if hasParams {
		b.emitComment("", fmt.Sprintf("%sParams are the parameters of %s.", op, nsid))
		b.printf("type %sParams struct {\n", op)
		b.emitParamFields(doc, nsid, def.Parameters)
		b.printf("}\n\n")
		b.emitParamValues(doc, nsid, op, def.Parameters)
	}

	jsonInput := def.Input != nil && def.Input.Encoding == "application/json" && def.Input.Schema != nil
	if jsonInput {
		b.emitComment(def.Input.Description, fmt.Sprintf("%sInput is the input of %s.", op, nsid))
		b.printf("type %sInput struct {\n", op)
		b.emitFields(doc, nsid+"#main.input", op+"Input", def.Input.Schema)
		b.printf("}\n\n")
	}
	if def.Output != nil && def.Output.Encoding == "application/json" && def.Output.Schema != nil {
		b.emitComment(def.Output.Description, fmt.Sprintf("%sOutput is the output of %s.", op, nsid))
		b.printf("type %sOutput struct {\n", op)
		b.emitFields(doc, nsid+"#main.output", op+"Output", def.Output.Schema)
		b.printf("}\n\n")
	}

	b.emitComment(def.Description, fmt.Sprintf("%s builds a %s request.", op, nsid))
	switch {
	case def.Type == "query" && hasParams:
		b.printf("func %s(params %sParams) xrpc.Request {\n", op, op)
		b.printf("\treturn xrpc.NewQuery(%q, params.values())\n", nsid)
		b.printf("}\n\n")
	case def.Type == "query":
		b.printf("func %s() xrpc.Request {\n", op)
		b.printf("\treturn xrpc.NewQuery(%q, nil)\n", nsid)
		b.printf("}\n\n")
	case jsonInput:
		b.printf("func %s(input %sInput) (xrpc.Request, error) {\n", op, op)
		b.printf("\treturn xrpc.NewProcedure(%q, input)\n", nsid)
		b.printf("}\n\n")
	case def.Input != nil:
		// Binary input body.
		b.printf("func %s(body []byte, encoding string) xrpc.Request {\n", op)
		b.printf("\treturn xrpc.NewBytesProcedure(%q, encoding, body)\n", nsid)
		b.printf("}\n\n")
	default:
		b.printf("func %s() (xrpc.Request, error) {\n", op)
		b.printf("\treturn xrpc.NewProcedure(%q, nil)\n", nsid)
		b.printf("}\n\n")
	}

	b.emitErrors(op, def.Errors)
}

func (b *fileBuilder) emitErrors(op string, errors []ErrorDef) {
	if len(errors) == 0 {
		return
	}
	b.printf("// %s error codes.\nconst (\n", op)
	for _, e := range errors {
		b.printf("\t%sError%s = %q\n", op, pascalCase(e.Name), e.Name)
	}
	b.printf(")\n\n")
}

func (b *fileBuilder) emitParamFields(doc *Document, nsid string, params *TypeSchema) {
	required := map[string]bool{}
	for _, prop := range params.Required {
		required[prop] = true
	}
	props := sortedKeys(params.Properties)
	for _, prop := range props {
		schema := params.Properties[prop]
		var goType string
		switch schema.Type {
		case "string":
			goType = "string"
		case "integer":
			goType = "int64"
		case "boolean":
			goType = "bool"
		case "array":
			goType = "[]string"
		default:
			b.generator.diag(nsid+"#main.parameters."+prop, "unsupported parameter type %q", schema.Type)
			goType = "string"
		}
		if !required[prop] && schema.Type != "array" {
			goType = "*" + goType
		}
		if schema.Description != "" {
			for _, line := range wrapComment(schema.Description) {
				b.printf("\t// %s\n", line)
			}
		}
		b.printf("\t%s %s\n", fieldName(prop), goType)
	}
}

func (b *fileBuilder) emitParamValues(doc *Document, nsid, op string, params *TypeSchema) {
	required := map[string]bool{}
	for _, prop := range params.Required {
		required[prop] = true
	}
	b.use("net/url")
	b.printf("func (p %sParams) values() url.Values {\n", op)
	b.printf("\tvalues := url.Values{}\n")
	for _, prop := range sortedKeys(params.Properties) {
		schema := params.Properties[prop]
		field := "p." + fieldName(prop)
		switch {
		case schema.Type == "array":
			b.printf("\tvalues[%q] = %s\n", prop, field)
		case required[prop]:
			b.printf("\tvalues.Set(%q, %s)\n", prop, b.formatParam(schema.Type, field))
		default:
			b.printf("\tif %s != nil {\n", field)
			b.printf("\t\tvalues.Set(%q, %s)\n", prop, b.formatParam(schema.Type, "*"+field))
			b.printf("\t}\n")
		}
	}
	b.printf("\treturn values\n")
	b.printf("}\n\n")
}

func (b *fileBuilder) formatParam(schemaType, expr string) string {
	switch schemaType {
	case "integer":
		b.use("strconv")
		return fmt.Sprintf("strconv.FormatInt(%s, 10)", expr)
	case "boolean":
		b.use("strconv")
		return fmt.Sprintf("strconv.FormatBool(%s)", expr)
	default:
		return expr
	}
}

func (b *fileBuilder) emitSubscription(doc *Document, defName string, def *TypeSchema) {
	if defName != "main" {
		b.generator.diag(doc.ID.String()+"#"+defName, "subscription def outside main")
		return
	}
	op := opName(doc.ID)
	hasParams := def.Parameters != nil && len(def.Parameters.Properties) > 0
	if hasParams {
		b.emitComment("", fmt.Sprintf("%sParams are the parameters of %s.", op, doc.ID))
		b.printf("type %sParams struct {\n", op)
		b.emitParamFields(doc, doc.ID.String(), def.Parameters)
		b.printf("}\n\n")
		b.emitParamValues(doc, doc.ID.String(), op, def.Parameters)
		b.use("net/url")
	}
	// Message payload types are ordinary defs in the same document;
	// they are emitted by emitDocument. Only the error set is left.
	b.emitErrors(op, def.Errors)
}

func sortedKeys(m map[string]*TypeSchema) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
