package rules

// defaultRules is the built-in rule document used when no rule file is
// configured. It covers the template-injection and field-code attack
// strings we have seen against generated documents; deployments extend
// or replace it with their own file.
const defaultRules = `
version: builtin-1
placeholders:
  - '\{\{[^{}\r\n]{0,256}\}\}'
  - '\{%[^%]{0,256}%\}'
  - '\$\{[A-Za-z_][A-Za-z0-9_.]{0,128}\}'
rules:
  - id: dde-auto-field
    description: DDEAUTO field code launching an external program at open
    severity: critical
    kind: text
    pattern: '(?i)DDEAUTO\b'
  - id: dde-field
    description: DDE field code
    severity: high
    kind: text
    pattern: '(?i)\bDDE\b[^<]{0,64}(cmd|powershell|mshta|rundll32)'
  - id: remote-template-http
    description: settings relationship pulling a template over HTTP
    severity: critical
    kind: text
    pattern: '(?i)attachedTemplate[^>]{0,512}Target="https?://'
    parts:
      - 'word/_rels/**'
  - id: mshtml-exploit-marker
    description: marker seen in CVE-2021-40444 style payloads
    severity: critical
    kind: text
    pattern: '(?i)mhtml:https?://'
  - id: script-uri
    description: script-scheme URI inside document XML
    severity: high
    kind: text
    pattern: '(?i)(javascript|vbscript):'
  - id: mz-executable
    description: raw PE executable image inside a part
    severity: critical
    kind: binary
    bytes_hex: '4d5a9000'
  - id: shell-object-classid
    description: Shell.Explorer / ShellExecute class id in OLE payload
    severity: high
    kind: binary
    bytes_hex: '8856f96120a768118502444553540000'
`

// Default compiles the built-in rule set. It must never fail; a broken
// builtin is a programming error caught by the package tests.
func Default() *RuleSet {
	rs, err := Parse([]byte(defaultRules))
	if err != nil {
		panic("builtin rule set does not compile: " + err.Error())
	}
	return rs
}
