package catalog

const eventCols = `id, host_id, title, type, description, date, location, image,
       min_participants, max_participants, joining_fee, status, created_at, updated_at`

const insertEventSQL = `
INSERT INTO events (
  id, host_id, title, type, description, date, location, image,
  min_participants, max_participants, joining_fee, status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`

const getEventSQL = `
SELECT ` + eventCols + `,
       (SELECT COUNT(*) FROM enrollments en WHERE en.event_id = events.id) AS enrolled_count
FROM events WHERE id = $1
`

const updateEventSQL = `
UPDATE events SET
  title=$2, type=$3, description=$4, date=$5, location=$6, image=$7,
  min_participants=$8, max_participants=$9, joining_fee=$10, status=$11, updated_at=$12
WHERE id=$1 AND status <> 'COMPLETED'
`

const deleteEventSQL = `DELETE FROM events WHERE id = $1 AND status <> 'COMPLETED'`

const eventStatusSQL = `SELECT status FROM events WHERE id = $1`
