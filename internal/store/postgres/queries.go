package postgres

// lockScope is the refresh_state row that carries the refresh lock.
const lockScope = "refresh"

const queryTryAcquireLock = `
UPDATE refresh_state
SET in_progress = true, owner = $2, acquired_at = now()
WHERE scope = $1
  AND (in_progress = false OR acquired_at IS NULL OR acquired_at < now() - ($3::bigint * interval '1 millisecond'))
`

const queryReleaseLock = `
UPDATE refresh_state
SET in_progress = false, owner = NULL, acquired_at = NULL
WHERE scope = $1 AND in_progress = true AND owner = $2
`

const queryLockInProgress = `
SELECT in_progress FROM refresh_state WHERE scope = $1
`

const queryGetLastRefresh = `
SELECT last_refreshed_at FROM refresh_state WHERE scope = $1
`

const querySetLastRefresh = `
INSERT INTO refresh_state (scope, last_refreshed_at)
VALUES ($1, $2)
ON CONFLICT (scope) DO UPDATE SET last_refreshed_at = EXCLUDED.last_refreshed_at
`

// created_at is never overwritten; a degraded run keeps the previous vector.
const queryUpsertTender = `
INSERT INTO tenders (
    id, source, source_reference, source_url,
    title, description, status, category, procurement_type, procurement_method,
    published_date, closing_date, contract_start_date,
    contracting_entity_name, contracting_entity_city, contracting_entity_province,
    contracting_entity_country, delivery_location,
    estimated_value, currency,
    contact_name, contact_email, contact_phone,
    gsin, unspsc, plan_takers_count, submissions_count,
    embedding, embedding_input, last_scraped_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)
ON CONFLICT (id) DO UPDATE SET
    source = EXCLUDED.source,
    source_reference = EXCLUDED.source_reference,
    source_url = EXCLUDED.source_url,
    title = EXCLUDED.title,
    description = EXCLUDED.description,
    status = EXCLUDED.status,
    category = EXCLUDED.category,
    procurement_type = EXCLUDED.procurement_type,
    procurement_method = EXCLUDED.procurement_method,
    published_date = EXCLUDED.published_date,
    closing_date = EXCLUDED.closing_date,
    contract_start_date = EXCLUDED.contract_start_date,
    contracting_entity_name = EXCLUDED.contracting_entity_name,
    contracting_entity_city = EXCLUDED.contracting_entity_city,
    contracting_entity_province = EXCLUDED.contracting_entity_province,
    contracting_entity_country = EXCLUDED.contracting_entity_country,
    delivery_location = EXCLUDED.delivery_location,
    estimated_value = EXCLUDED.estimated_value,
    currency = EXCLUDED.currency,
    contact_name = EXCLUDED.contact_name,
    contact_email = EXCLUDED.contact_email,
    contact_phone = EXCLUDED.contact_phone,
    gsin = EXCLUDED.gsin,
    unspsc = EXCLUDED.unspsc,
    plan_takers_count = EXCLUDED.plan_takers_count,
    submissions_count = EXCLUDED.submissions_count,
    embedding = COALESCE(EXCLUDED.embedding, tenders.embedding),
    embedding_input = COALESCE(EXCLUDED.embedding_input, tenders.embedding_input),
    last_scraped_at = EXCLUDED.last_scraped_at,
    updated_at = now()
`

const queryRemoveStale = `
DELETE FROM tenders
WHERE source = $1
  AND NOT (source_reference = ANY($2))
`

const queryRemoveExpired = `
DELETE FROM tenders
WHERE closing_date < $1
`

const queryCountTenders = `
SELECT count(*) FROM tenders WHERE source = $1
`

const queryCountAllTenders = `
SELECT count(*) FROM tenders
`
