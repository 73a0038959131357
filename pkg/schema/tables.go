package schema

// Base tables in their version 0 shape. Each statement is formatted with the
// quoted schema (%[1]s) and owner (%[2]s).
var baseTables = []struct {
	name string
	ddl  string
}{
	{"pages", `
CREATE TABLE %[1]s.pages (
    id          serial PRIMARY KEY,
    wiki_id     varchar UNIQUE,
    url         varchar UNIQUE,
    lang        varchar,
    title       varchar NOT NULL,
    categories  varchar (1000) ARRAY,
    text        varchar NOT NULL,
    refs        jsonb ARRAY
);
ALTER TABLE %[1]s.pages OWNER TO %[2]s;
CREATE INDEX pages_wiki_id ON %[1]s.pages(wiki_id);
CREATE INDEX pages_url ON %[1]s.pages(url);
COMMENT ON TABLE %[1]s.pages IS 'The wikipedia pages table';
COMMENT ON COLUMN %[1]s.pages.wiki_id IS 'The wiki page ID';
COMMENT ON COLUMN %[1]s.pages.refs IS 'The list of wiki page references';`},

	{"entities", `
CREATE TABLE %[1]s.entities (
    id          serial PRIMARY KEY,
    concept_id  varchar UNIQUE
);
ALTER TABLE %[1]s.entities OWNER TO %[2]s;
CREATE INDEX entities_concept_id ON %[1]s.entities(concept_id);
COMMENT ON TABLE %[1]s.entities IS 'The wikipedia entities table';`},

	{"entities_pages", `
CREATE TABLE %[1]s.entities_pages (
    entity_id   varchar NOT NULL,
    page_id     varchar NOT NULL,
    PRIMARY KEY (entity_id, page_id),
    FOREIGN KEY (entity_id) REFERENCES %[1]s.entities(concept_id) ON UPDATE CASCADE,
    FOREIGN KEY (page_id)   REFERENCES %[1]s.pages(wiki_id)       ON UPDATE CASCADE
);
ALTER TABLE %[1]s.entities_pages OWNER TO %[2]s;
CREATE INDEX entities_pages_entity_id ON %[1]s.entities_pages(entity_id);
CREATE INDEX entities_pages_page_id ON %[1]s.entities_pages(page_id);
COMMENT ON TABLE %[1]s.entities_pages IS 'The table joining the entity and page records';`},

	{"database_version", `
CREATE TABLE %[1]s.database_version (
    version     integer PRIMARY KEY,
    date        timestamp with time zone DEFAULT now()
);
ALTER TABLE %[1]s.database_version OWNER TO %[2]s;
CREATE OR REPLACE FUNCTION %[1]s.update_date_column()
RETURNS TRIGGER AS $$
BEGIN
    NEW.date = now();
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;
CREATE TRIGGER update_database_version_date
    BEFORE UPDATE ON %[1]s.database_version
    FOR EACH ROW
    EXECUTE PROCEDURE %[1]s.update_date_column();`},
}
