package mcpserver

// NoteGuide describes the note kinds and fields LLM consumers work with.
const NoteGuide = `# SageNote notes

Every note has a numeric id, a title, a background color and one of four kinds.

## Kinds

- TEXT: free text in ` + "`content`" + `. Create with ` + "`create_note`" + `.
- LIST: a checklist in ` + "`list_items`" + `; ` + "`content`" + ` is a summary such as
  "List with 3 items". Create with ` + "`create_list_note`" + `.
- DRAWING: a PNG file named in ` + "`drawing_path`" + `. Create with ` + "`create_drawing_note`" + `
  from strokes.
- AUDIO: a 3GP recording named in ` + "`audio_path`" + `. Create with ` + "`create_audio_note`" + `
  from a base64 data URI or an http(s) URL.

## Fields

- Titles must not be blank.
- ` + "`color`" + ` is a packed 0xAARRGGBB integer. ` + "`text_color`" + ` is derived from it and
  cannot be set.
- ` + "`updated_at`" + ` is set by the server on every change.
- Pinned notes sort first, then the most recently updated.

## Search

` + "`search_notes`" + ` matches a case-insensitive substring of the title or content.
A blank query returns nothing.
`
