package stages

// JSON schemas handed to structured generations. The model may enforce them
// natively; the task runner validates regardless.

const validationSchema = `{
  "type": "object",
  "properties": {
    "valid": {"type": "boolean"},
    "error": {"type": "string"}
  },
  "required": ["valid"]
}`

const stringListSchema = `{
  "type": "array",
  "items": {"type": "string"}
}`

const nestedQuestionsSchema = `{
  "type": "array",
  "items": {
    "type": "array",
    "items": {
      "type": "array",
      "items": {"type": "string"}
    }
  }
}`

const sourceClassifierSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "author": {"type": "string"},
    "date": {"type": "string"},
    "published_after": {"type": "boolean"}
  },
  "required": ["title", "author", "date", "published_after"]
}`

const dataClassifierSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "description": {"type": "string"},
    "columns": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "description": {"type": "string"}
        },
        "required": ["title", "description"]
      }
    }
  },
  "required": ["title", "description", "columns"]
}`

const visualTypeSchema = `{
  "type": "object",
  "properties": {
    "type": {"type": "string", "enum": ["line", "bar", "pie", "stock", "table"]}
  },
  "required": ["type"]
}`

const lineChartSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "x_labels": {"type": "array", "items": {"type": "string"}},
    "series": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "values": {"type": "array", "items": {"type": "number"}}
        },
        "required": ["name", "values"]
      }
    }
  },
  "required": ["title", "series"]
}`

const barChartSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "labels": {"type": "array", "items": {"type": "string"}},
    "values": {"type": "array", "items": {"type": "number"}}
  },
  "required": ["title", "labels", "values"]
}`

const pieChartSchema = barChartSchema

const stockChartSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "candles": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "label": {"type": "string"},
          "open": {"type": "number"},
          "high": {"type": "number"},
          "low": {"type": "number"},
          "close": {"type": "number"}
        },
        "required": ["label", "open", "high", "low", "close"]
      }
    }
  },
  "required": ["title", "candles"]
}`

const tableSpecSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "columns": {"type": "array", "items": {"type": "string"}},
    "rows": {
      "type": "array",
      "items": {"type": "array", "items": {"type": "string"}}
    }
  },
  "required": ["title", "columns", "rows"]
}`

const insertionSchema = `{
  "type": "object",
  "properties": {
    "section": {"type": "integer", "minimum": 0},
    "sub_section": {"type": "integer", "minimum": 0}
  },
  "required": ["section", "sub_section"]
}`
