package mcpserver

// NoteFormatContract describes the canonical Markdown note format that
// LLM consumers should follow when creating or updating notes.
const NoteFormatContract = `# Skald Note Format Contract

Every Markdown note stored in Skald MUST follow this structure.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # REQUIRED – used in search, sidebar, graph
tags:                               # OPTIONAL – YAML list; used for filtering
  - tag-one
  - tag-two
created: 2025-01-15                 # OPTIONAL – ISO-8601 date or datetime
---

Body text in standard Markdown.

Use [[wikilinks]] to reference other notes (without .md extension).
Use [[target|alias]] for display text that differs from the target.
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory.** The ` + "```" + `---` + "```" + ` fences must be the first
   thing in the file (no leading blank lines).
2. **` + "`" + `title` + "`" + ` field is required.** It is the primary display name everywhere.
3. **Tags** are lowercase, kebab-case (e.g. ` + "`" + `project-x` + "`" + `, ` + "`" + `meeting-notes` + "`" + `).
4. **Wikilinks** use double brackets: ` + "`" + `[[other-note]]` + "`" + `. The target is the
   filename stem (no ` + "`" + `.md` + "`" + ` extension, path separators OK: ` + "`" + `[[folder/note]]` + "`" + `).
5. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.
6. **Encoding** is UTF-8 with a trailing newline.
7. **No HTML** unless absolutely necessary; prefer Markdown equivalents.

## Link reference definitions

Skald maintains an autogenerated block of Markdown link reference
definitions at the bottom of each note so that wikilinks stay readable in
plain Markdown renderers:

` + "```" + `markdown
[//begin]: # "Autogenerated link references for markdown compatibility"
[other-note]: other-note "Other Note"
[//end]: # "Autogenerated link references"
` + "```" + `

- Do **not** write or edit this block by hand. Call the ` + "`" + `sync_link_refs` + "`" + `
  tool after creating or updating a note and the block is regenerated from
  the note's resolved wikilinks.
- A note with no resolved wikilinks carries no block at all.
- Content outside the ` + "`" + `[//begin]` + "`" + `/` + "`" + `[//end]` + "`" + ` markers is never touched.

## Assets & Images

- Upload assets via the ` + "`" + `upload_asset` + "`" + ` tool. It returns a ` + "`" + `markdownImage` + "`" + ` field ready to paste into the note body.
- Assets are stored in the shared ` + "`" + `attachments/` + "`" + ` directory (flat, no sub-folders).
- Reference in notes using the absolute path: ` + "`" + `![description](/attachments/filename.png)` + "`" + `
- Supported formats: png, jpg, jpeg, gif, webp, svg, pdf.
- Do **not** use relative paths like ` + "`" + `./attachments/...` + "`" + ` — always use ` + "`" + `/attachments/filename` + "`" + `.

## Example

` + "```" + `markdown
---
title: Weekly standup 2025-01-20
tags:
  - meeting-notes
  - project-x
created: 2025-01-20
---

# Weekly standup 2025-01-20

Attendees: Alice, Bob.

![Whiteboard photo](/attachments/standup-2025-01-20.jpg)

## Action items

- [[alice]] to review the [[design-doc]]
- Bob to update [[project-x/roadmap|the roadmap]]

[//begin]: # "Autogenerated link references for markdown compatibility"
[alice]: alice "Alice"
[design-doc]: design-doc "Design Doc"
[project-x/roadmap]: project-x/roadmap "Roadmap"
[//end]: # "Autogenerated link references"
` + "```" + `
`
